package synthesizer

import (
	"fmt"
	"strings"
)

// Bundle is the full documentation set produced for a repository.
type Bundle struct {
	Readme            string            `json:"readme"`
	APIDocs           string            `json:"api_docs"`
	SetupGuide        string            `json:"setup_guide"`
	ArchitectureDocs  string            `json:"architecture_docs"`
	ContributingGuide string            `json:"contributing_guide"`
	Changelog         string            `json:"changelog"`
	License           string            `json:"license"`
	Gitignore         string            `json:"gitignore"`
	Dockerfile        string            `json:"dockerfile"`
	AdditionalFiles   map[string]string `json:"additional_files"`
}

// Validate checks that the core documents are present and non-blank.
func (b *Bundle) Validate() error {
	required := []struct {
		name    string
		content string
	}{
		{"readme", b.Readme},
		{"api_docs", b.APIDocs},
		{"setup_guide", b.SetupGuide},
		{"architecture_docs", b.ArchitectureDocs},
	}

	var missing []string
	for _, doc := range required {
		if strings.TrimSpace(doc.content) == "" {
			missing = append(missing, doc.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("documentation bundle is incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
