package synthesizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/fetcher"
	"github.com/repodoc/docgen_server/internal/rag"
)

func pythonAnalysis() *fetcher.RepoAnalysis {
	return &fetcher.RepoAnalysis{
		RepoURL:        "https://github.com/octo/hello",
		Owner:          "octo",
		Name:           "hello",
		Description:    "A demo Flask service",
		PrimaryLang:    "Python",
		License:        "MIT License",
		Languages:      map[string]int64{"Python": 9000, "Makefile": 100},
		Technologies:   []string{"Python", "Flask"},
		ImportantFiles: []string{"README.md", "requirements.txt", "app.py"},
		Files: []fetcher.File{
			{Path: "README.md", Content: "# hello\nA demo Flask service for testing."},
			{Path: "requirements.txt", Content: "flask==3.0"},
			{Path: "app.py", Content: "from flask import Flask\napp = Flask(__name__)"},
		},
	}
}

func TestGenerateTemplateBundle(t *testing.T) {
	gen := NewGenerator(&config.LLMConfig{}) // no API key, templates only

	ragResult := &rag.Result{
		ProcessingStatus: rag.StatusSkipped,
		Patterns:         []string{"web service (Flask)"},
	}

	bundle, err := gen.Generate(context.Background(), pythonAnalysis(), ragResult)
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())

	assert.Contains(t, bundle.Readme, "# hello")
	assert.Contains(t, bundle.Readme, "Flask")
	assert.Contains(t, bundle.SetupGuide, "pip install -r requirements.txt")
	assert.Contains(t, bundle.ArchitectureDocs, "web service (Flask)")
	assert.Contains(t, bundle.License, "MIT License")
	assert.Contains(t, bundle.Dockerfile, "FROM python")
	assert.Contains(t, bundle.Gitignore, "__pycache__/")
	assert.Contains(t, bundle.AdditionalFiles["ci.yml"], "setup-python")
	assert.NotEmpty(t, bundle.AdditionalFiles["deployment.md"])
	assert.NotEmpty(t, bundle.AdditionalFiles["troubleshooting.md"])
}

func TestGenerateGoProject(t *testing.T) {
	analysis := &fetcher.RepoAnalysis{
		RepoURL:     "https://github.com/octo/tool",
		Owner:       "octo",
		Name:        "tool",
		PrimaryLang: "Go",
		Languages:   map[string]int64{"Go": 5000},
		Files: []fetcher.File{
			{Path: "go.mod", Content: "module example.com/tool"},
			{Path: "main.go", Content: "package main\n\nfunc main() {}"},
		},
	}

	gen := NewGenerator(&config.LLMConfig{})
	bundle, err := gen.Generate(context.Background(), analysis, nil)
	require.NoError(t, err)

	assert.Contains(t, bundle.SetupGuide, "go build ./...")
	assert.Contains(t, bundle.Dockerfile, "golang")
	assert.Contains(t, bundle.AdditionalFiles["ci.yml"], "setup-go")
}

func TestBuildContextBlockIncludesInsights(t *testing.T) {
	ragResult := &rag.Result{
		ProcessingStatus: rag.StatusCompleted,
		Insights: []rag.Insight{
			{Query: "what does this project do", Findings: []string{"README.md: demo service"}},
		},
	}

	block := buildContextBlock(pythonAnalysis(), ragResult)

	assert.Contains(t, block, "Repository: octo/hello")
	assert.Contains(t, block, "what does this project do")
	assert.Contains(t, block, "--- app.py ---")
}

func TestBuildContextBlockOmitsFailedRetrieval(t *testing.T) {
	ragResult := &rag.Result{ProcessingStatus: rag.StatusFailed}

	block := buildContextBlock(pythonAnalysis(), ragResult)

	assert.NotContains(t, block, "Semantic insights")
}
