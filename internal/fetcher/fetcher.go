package fetcher

import (
	"context"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/repodoc/docgen_server/internal/github"
)

// File is one fetched source file.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// RepoAnalysis is the structured snapshot of a repository that the
// downstream pipeline consumes.
type RepoAnalysis struct {
	RepoURL        string           `json:"repo_url"`
	Owner          string           `json:"owner"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	PrimaryLang    string           `json:"primary_language"`
	Stars          int              `json:"stars"`
	Forks          int              `json:"forks"`
	License        string           `json:"license"`
	Topics         []string         `json:"topics"`
	Languages      map[string]int64 `json:"languages"`
	Technologies   []string         `json:"technologies"`
	ImportantFiles []string         `json:"important_files"`
	Files          []File           `json:"files"`
	TotalFiles     int              `json:"total_files"`
	AnalyzedAt     time.Time        `json:"analyzed_at"`
}

// gitHubAPI is the slice of the GitHub client the fetcher depends on.
type gitHubAPI interface {
	GetRepository(ctx context.Context, ref github.RepoRef) (*github.Repository, error)
	GetLanguages(ctx context.Context, ref github.RepoRef) (map[string]int64, error)
	ListContents(ctx context.Context, ref github.RepoRef, dir string) ([]github.ContentEntry, error)
	GetFileContent(ctx context.Context, ref github.RepoRef, filePath string) ([]byte, error)
}

// Fetcher pulls a repository snapshot through the GitHub API.
type Fetcher struct {
	api          gitHubAPI
	maxFiles     int
	maxFileBytes int64
}

func New(api gitHubAPI, maxFiles int, maxFileBytes int64) *Fetcher {
	return &Fetcher{
		api:          api,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
	}
}

// Fetch builds the analysis snapshot for a repository.
func (f *Fetcher) Fetch(ctx context.Context, repoURL string, ref github.RepoRef) (*RepoAnalysis, error) {
	repo, err := f.api.GetRepository(ctx, ref)
	if err != nil {
		return nil, err
	}

	languages, err := f.api.GetLanguages(ctx, ref)
	if err != nil {
		// Languages are enrichment, not a hard requirement.
		log.Printf("fetch languages for %s failed: %v", ref, err)
		languages = map[string]int64{}
	}

	entries, err := f.api.ListContents(ctx, ref, "")
	if err != nil {
		return nil, err
	}

	selected := f.selectFiles(entries)

	analysis := &RepoAnalysis{
		RepoURL:        repoURL,
		Owner:          ref.Owner,
		Name:           ref.Name,
		Description:    repo.Description,
		PrimaryLang:    repo.Language,
		Stars:          repo.Stars,
		Forks:          repo.Forks,
		Topics:         repo.Topics,
		Languages:      languages,
		ImportantFiles: selected,
		TotalFiles:     len(entries),
		AnalyzedAt:     time.Now().UTC(),
	}
	if repo.License != nil {
		analysis.License = repo.License.Name
	}

	for _, filePath := range selected {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		content, err := f.api.GetFileContent(ctx, ref, filePath)
		if err != nil {
			log.Printf("fetch %s from %s failed: %v", filePath, ref, err)
			continue
		}
		content = truncateAtRune(content, int(f.maxFileBytes))
		analysis.Files = append(analysis.Files, File{
			Path:    filePath,
			Content: string(content),
		})
	}

	if len(analysis.Files) == 0 {
		return nil, fmt.Errorf("no readable files found in %s", ref)
	}

	analysis.Technologies = detectTechnologies(analysis)

	return analysis, nil
}

// truncateAtRune caps b at max bytes, backing up so a multi-byte rune
// is never split.
func truncateAtRune(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}

// Importance tiers for root entries. Lower is more important.
func fileTier(name string) int {
	lower := strings.ToLower(name)

	switch lower {
	case "readme.md", "readme.rst", "readme.txt", "readme":
		return 0
	case "package.json", "go.mod", "requirements.txt", "pyproject.toml",
		"cargo.toml", "pom.xml", "build.gradle", "gemfile", "composer.json",
		"setup.py":
		return 1
	case "main.go", "main.py", "app.py", "index.js", "index.ts",
		"server.js", "app.js", "main.rs", "main.java":
		return 2
	case "dockerfile", "docker-compose.yml", "docker-compose.yaml",
		"makefile", ".gitignore", "license", "license.md":
		return 3
	}

	switch path.Ext(lower) {
	case ".go", ".py", ".js", ".ts", ".rs", ".java", ".rb", ".php", ".c", ".cpp", ".cs":
		return 4
	case ".md", ".yml", ".yaml", ".toml", ".json":
		return 5
	}

	return -1
}

// selectFiles picks up to maxFiles root entries ordered by importance:
// readme, then manifests, then entry points, then build files, then
// other sources.
func (f *Fetcher) selectFiles(entries []github.ContentEntry) []string {
	type candidate struct {
		path string
		tier int
	}
	var candidates []candidate

	for _, e := range entries {
		if e.Type != "file" {
			continue
		}
		tier := fileTier(e.Name)
		if tier < 0 {
			continue
		}
		candidates = append(candidates, candidate{path: e.Path, tier: tier})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].tier < candidates[j].tier
	})

	if len(candidates) > f.maxFiles {
		candidates = candidates[:f.maxFiles]
	}

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	return paths
}

var manifestTechnologies = map[string]string{
	"package.json":       "Node.js",
	"go.mod":             "Go",
	"requirements.txt":   "Python",
	"pyproject.toml":     "Python",
	"cargo.toml":         "Rust",
	"pom.xml":            "Java (Maven)",
	"build.gradle":       "Java (Gradle)",
	"gemfile":            "Ruby",
	"composer.json":      "PHP",
	"dockerfile":         "Docker",
	"docker-compose.yml": "Docker Compose",
}

var contentTechnologies = []struct {
	marker string
	tech   string
}{
	{"from flask", "Flask"},
	{"import flask", "Flask"},
	{"from django", "Django"},
	{"from fastapi", "FastAPI"},
	{"github.com/gin-gonic/gin", "Gin"},
	{"require('express')", "Express"},
	{"require(\"express\")", "Express"},
	{"from react", "React"},
	{"'react'", "React"},
	{"\"react\"", "React"},
	{"import vue", "Vue"},
	{"postgresql", "PostgreSQL"},
	{"mysql", "MySQL"},
	{"mongodb", "MongoDB"},
	{"redis", "Redis"},
	{"kubernetes", "Kubernetes"},
}

// detectTechnologies inspects manifests and file contents for known stacks.
func detectTechnologies(analysis *RepoAnalysis) []string {
	seen := make(map[string]struct{})
	var techs []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		techs = append(techs, t)
	}

	if analysis.PrimaryLang != "" {
		add(analysis.PrimaryLang)
	}

	for _, file := range analysis.Files {
		if tech, ok := manifestTechnologies[strings.ToLower(path.Base(file.Path))]; ok {
			add(tech)
		}
		lower := strings.ToLower(file.Content)
		for _, ct := range contentTechnologies {
			if strings.Contains(lower, ct.marker) {
				add(ct.tech)
			}
		}
	}

	return techs
}
