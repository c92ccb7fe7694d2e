package packager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"

	"github.com/repodoc/docgen_server/internal/synthesizer"
)

// Build zips a documentation bundle into the layout users unpack into
// their repository: README at the root, narrative docs under docs/.
func Build(bundle *synthesizer.Bundle) ([]byte, error) {
	files := map[string]string{
		"README.md":                  bundle.Readme,
		"docs/api_docs.md":           bundle.APIDocs,
		"docs/setup_guide.md":        bundle.SetupGuide,
		"docs/architecture_docs.md":  bundle.ArchitectureDocs,
		"docs/contributing_guide.md": bundle.ContributingGuide,
		"CHANGELOG.md":               bundle.Changelog,
		"LICENSE.md":                 bundle.License,
		".gitignore":                 bundle.Gitignore,
		"Dockerfile":                 bundle.Dockerfile,
	}
	for name, content := range bundle.AdditionalFiles {
		files["extras/"+name] = content
	}

	names := make([]string, 0, len(files))
	for name := range files {
		if files[name] == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create %s in archive: %w", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, fmt.Errorf("write %s to archive: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}
