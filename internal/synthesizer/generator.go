package synthesizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/fetcher"
	"github.com/repodoc/docgen_server/internal/rag"
)

// Generator assembles the documentation bundle from the repository
// analysis, optionally enriched by a language model.
type Generator struct {
	llm *llmClient
}

func NewGenerator(cfg *config.LLMConfig) *Generator {
	return &Generator{llm: newLLMClient(cfg)}
}

// Generate builds the bundle. Templates provide the deterministic
// baseline; when an LLM is configured the narrative documents are
// rewritten from the analysis and retrieval context.
func (g *Generator) Generate(ctx context.Context, analysis *fetcher.RepoAnalysis, ragResult *rag.Result) (*Bundle, error) {
	bundle := &Bundle{
		Readme:            renderReadme(analysis),
		APIDocs:           renderAPIDocs(analysis),
		SetupGuide:        renderSetupGuide(analysis),
		ArchitectureDocs:  renderArchitectureDocs(analysis, ragResult),
		ContributingGuide: renderContributingGuide(analysis),
		Changelog:         renderChangelog(analysis),
		License:           renderLicense(analysis),
		Gitignore:         renderGitignore(analysis),
		Dockerfile:        renderDockerfile(analysis),
		AdditionalFiles: map[string]string{
			"ci.yml":             renderCI(analysis),
			"deployment.md":      renderDeployment(analysis),
			"troubleshooting.md": renderTroubleshooting(analysis),
		},
	}

	if g.llm != nil && g.llm.enabled() {
		if err := g.llm.enrich(ctx, bundle, analysis, ragResult); err != nil {
			return nil, err
		}
	}

	if err := bundle.Validate(); err != nil {
		return nil, &SynthesisError{
			UserMessage: "documentation generation produced an incomplete bundle",
			RawError:    err.Error(),
		}
	}

	return bundle, nil
}

func projectTitle(analysis *fetcher.RepoAnalysis) string {
	return analysis.Name
}

func description(analysis *fetcher.RepoAnalysis) string {
	if analysis.Description != "" {
		return analysis.Description
	}
	return fmt.Sprintf("A %s project.", primaryLanguage(analysis))
}

func primaryLanguage(analysis *fetcher.RepoAnalysis) string {
	if analysis.PrimaryLang != "" {
		return analysis.PrimaryLang
	}
	return "software"
}

func sortedLanguages(analysis *fetcher.RepoAnalysis) []string {
	langs := make([]string, 0, len(analysis.Languages))
	for lang := range analysis.Languages {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if analysis.Languages[langs[i]] != analysis.Languages[langs[j]] {
			return analysis.Languages[langs[i]] > analysis.Languages[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

func renderReadme(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n%s\n\n", projectTitle(analysis), description(analysis))

	if len(analysis.Technologies) > 0 {
		sb.WriteString("## Tech Stack\n\n")
		for _, tech := range analysis.Technologies {
			fmt.Fprintf(&sb, "- %s\n", tech)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Getting Started\n\nSee [docs/setup_guide.md](docs/setup_guide.md) for installation and configuration.\n\n")
	sb.WriteString("## Documentation\n\n")
	sb.WriteString("- [API Reference](docs/api_docs.md)\n")
	sb.WriteString("- [Architecture](docs/architecture_docs.md)\n")
	sb.WriteString("- [Contributing](docs/contributing_guide.md)\n")

	if analysis.License != "" {
		fmt.Fprintf(&sb, "\n## License\n\n%s\n", analysis.License)
	}

	return sb.String()
}

func renderAPIDocs(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s API Reference\n\n", projectTitle(analysis))
	sb.WriteString("## Overview\n\n")
	fmt.Fprintf(&sb, "%s\n\n", description(analysis))
	sb.WriteString("## Modules\n\n")
	for _, file := range analysis.Files {
		fmt.Fprintf(&sb, "### `%s`\n\n", file.Path)
		fmt.Fprintf(&sb, "%s\n\n", firstMeaningfulLine(file.Content))
	}
	return sb.String()
}

func firstMeaningfulLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#/*- ")
		if len(line) > 10 {
			if len(line) > 120 {
				line = line[:120] + "..."
			}
			return line
		}
	}
	return "Source file."
}

func renderSetupGuide(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Setup Guide\n\n## Prerequisites\n\n", projectTitle(analysis))
	for _, lang := range sortedLanguages(analysis) {
		fmt.Fprintf(&sb, "- %s toolchain\n", lang)
	}
	sb.WriteString("\n## Installation\n\n```bash\n")
	fmt.Fprintf(&sb, "git clone %s\ncd %s\n", analysis.RepoURL, analysis.Name)
	sb.WriteString(installCommand(analysis))
	sb.WriteString("```\n\n## Configuration\n\nReview the configuration files in the repository root and adjust for your environment.\n")
	return sb.String()
}

func installCommand(analysis *fetcher.RepoAnalysis) string {
	for _, file := range analysis.Files {
		switch strings.ToLower(file.Path) {
		case "package.json":
			return "npm install\n"
		case "requirements.txt":
			return "pip install -r requirements.txt\n"
		case "pyproject.toml":
			return "pip install .\n"
		case "go.mod":
			return "go build ./...\n"
		case "cargo.toml":
			return "cargo build\n"
		case "gemfile":
			return "bundle install\n"
		}
	}
	return "# install dependencies for your toolchain\n"
}

func renderArchitectureDocs(analysis *fetcher.RepoAnalysis, ragResult *rag.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Architecture\n\n## Overview\n\n%s\n\n", projectTitle(analysis), description(analysis))

	sb.WriteString("## Languages\n\n")
	for _, lang := range sortedLanguages(analysis) {
		fmt.Fprintf(&sb, "- %s (%d bytes)\n", lang, analysis.Languages[lang])
	}

	if ragResult != nil && len(ragResult.Patterns) > 0 {
		sb.WriteString("\n## Observed Patterns\n\n")
		for _, p := range ragResult.Patterns {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}

	sb.WriteString("\n## Key Files\n\n")
	for _, p := range analysis.ImportantFiles {
		fmt.Fprintf(&sb, "- `%s`\n", p)
	}

	return sb.String()
}

func renderContributingGuide(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Contributing to %s\n\n", projectTitle(analysis))
	sb.WriteString("## Workflow\n\n")
	sb.WriteString("1. Fork the repository and create a feature branch.\n")
	sb.WriteString("2. Make your changes with tests.\n")
	sb.WriteString("3. Open a pull request describing the change.\n\n")
	sb.WriteString("## Code Style\n\n")
	fmt.Fprintf(&sb, "Follow the established %s conventions in the existing code.\n", primaryLanguage(analysis))
	return sb.String()
}

func renderChangelog(analysis *fetcher.RepoAnalysis) string {
	return fmt.Sprintf("# Changelog\n\n## Unreleased\n\n- Initial documentation generated %s.\n",
		time.Now().UTC().Format("2006-01-02"))
}

func renderLicense(analysis *fetcher.RepoAnalysis) string {
	if analysis.License != "" {
		return fmt.Sprintf("This project is licensed under the %s. See the upstream repository for the full text.\n", analysis.License)
	}
	return "No license detected. Consider adding one; see https://choosealicense.com.\n"
}

func renderGitignore(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	sb.WriteString("# OS\n.DS_Store\nThumbs.db\n\n# Editors\n.idea/\n.vscode/\n*.swp\n\n")
	switch analysis.PrimaryLang {
	case "Go":
		sb.WriteString("# Go\n*.test\n*.out\nbin/\n")
	case "Python":
		sb.WriteString("# Python\n__pycache__/\n*.pyc\n.venv/\n*.egg-info/\n")
	case "JavaScript", "TypeScript":
		sb.WriteString("# Node\nnode_modules/\ndist/\n.env\n")
	case "Rust":
		sb.WriteString("# Rust\ntarget/\n")
	case "Java":
		sb.WriteString("# Java\n*.class\ntarget/\nbuild/\n")
	}
	return sb.String()
}

func renderDockerfile(analysis *fetcher.RepoAnalysis) string {
	switch analysis.PrimaryLang {
	case "Go":
		return "FROM golang:1.23-alpine AS build\nWORKDIR /src\nCOPY . .\nRUN go build -o /app ./...\n\nFROM alpine:3.20\nCOPY --from=build /app /app\nENTRYPOINT [\"/app\"]\n"
	case "Python":
		return "FROM python:3.12-slim\nWORKDIR /app\nCOPY requirements.txt .\nRUN pip install --no-cache-dir -r requirements.txt\nCOPY . .\nCMD [\"python\", \"app.py\"]\n"
	case "JavaScript", "TypeScript":
		return "FROM node:22-alpine\nWORKDIR /app\nCOPY package*.json ./\nRUN npm ci\nCOPY . .\nCMD [\"npm\", \"start\"]\n"
	default:
		return "FROM debian:bookworm-slim\nWORKDIR /app\nCOPY . .\n# Add build and run steps for your toolchain\n"
	}
}

func renderCI(analysis *fetcher.RepoAnalysis) string {
	var steps string
	switch analysis.PrimaryLang {
	case "Go":
		steps = "      - uses: actions/setup-go@v5\n        with:\n          go-version: '1.23'\n      - run: go test ./...\n"
	case "Python":
		steps = "      - uses: actions/setup-python@v5\n        with:\n          python-version: '3.12'\n      - run: pip install -r requirements.txt\n      - run: pytest\n"
	case "JavaScript", "TypeScript":
		steps = "      - uses: actions/setup-node@v4\n        with:\n          node-version: '22'\n      - run: npm ci\n      - run: npm test\n"
	default:
		steps = "      - run: echo \"add build steps\"\n"
	}
	return "name: CI\n\non: [push, pull_request]\n\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n" + steps
}

func renderDeployment(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Deploying %s\n\n## Container\n\nBuild and run with the provided Dockerfile:\n\n```bash\ndocker build -t %s .\ndocker run %s\n```\n",
		projectTitle(analysis), analysis.Name, analysis.Name)
	return sb.String()
}

func renderTroubleshooting(analysis *fetcher.RepoAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Troubleshooting %s\n\n", projectTitle(analysis))
	sb.WriteString("## Installation fails\n\nCheck that the prerequisite toolchain versions from the setup guide are installed.\n\n")
	sb.WriteString("## Service does not start\n\nInspect logs for configuration errors and verify required environment variables are set.\n")
	return sb.String()
}
