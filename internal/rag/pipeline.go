package rag

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/fetcher"
)

const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Insight is one semantic finding retrieved from the indexed repository.
type Insight struct {
	Query    string   `json:"query"`
	Findings []string `json:"findings"`
}

// Result is the retrieval stage output attached to the job result. The
// pipeline degrades rather than failing the job: ProcessingStatus tells
// the consumer how much to trust the rest.
type Result struct {
	ProcessingStatus string              `json:"processing_status"`
	DocumentCount    int                 `json:"document_count"`
	Insights         []Insight           `json:"semantic_insights"`
	Patterns         []string            `json:"code_patterns"`
	KnowledgeGraph   map[string][]string `json:"knowledge_graph"`
	Error            string              `json:"error,omitempty"`
}

// Pipeline indexes repository files into an in-memory vector store and
// queries it for documentation-relevant context.
type Pipeline struct {
	client         *openai.Client
	embeddingModel string
	enabled        bool
}

func New(cfg *config.LLMConfig) *Pipeline {
	p := &Pipeline{
		embeddingModel: cfg.EmbeddingModel,
		enabled:        cfg.APIKey != "",
	}
	if p.enabled {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		p.client = openai.NewClientWithConfig(clientCfg)
	}
	return p
}

var seedQueries = []string{
	"what does this project do and what problem does it solve",
	"how is the project installed and configured",
	"what are the main entry points and public interfaces",
	"what external services and dependencies does it rely on",
	"how is the code organized into modules",
}

// Process indexes the fetched files and runs the seed queries. A
// pipeline without an API key reports skipped; internal failures report
// failed. Neither aborts the job.
func (p *Pipeline) Process(ctx context.Context, analysis *fetcher.RepoAnalysis) *Result {
	if !p.enabled {
		return &Result{
			ProcessingStatus: StatusSkipped,
			Insights:         []Insight{},
			Patterns:         extractPatterns(analysis),
			KnowledgeGraph:   buildKnowledgeGraph(analysis),
		}
	}

	result, err := p.index(ctx, analysis)
	if err != nil {
		log.Printf("rag pipeline failed for %s/%s: %v", analysis.Owner, analysis.Name, err)
		return &Result{
			ProcessingStatus: StatusFailed,
			Insights:         []Insight{},
			Patterns:         extractPatterns(analysis),
			KnowledgeGraph:   buildKnowledgeGraph(analysis),
			Error:            "semantic indexing failed",
		}
	}
	return result
}

func (p *Pipeline) index(ctx context.Context, analysis *fetcher.RepoAnalysis) (*Result, error) {
	db := chromem.NewDB()

	embed := p.embeddingFunc()
	collection, err := db.CreateCollection("repo", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	docs := buildDocuments(analysis)
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to index")
	}

	if err := collection.AddDocuments(ctx, docs, 2); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}

	insights := make([]Insight, 0, len(seedQueries))
	for _, query := range seedQueries {
		nResults := 3
		if count := collection.Count(); count < nResults {
			nResults = count
		}
		results, err := collection.Query(ctx, query, nResults, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", query, err)
		}

		findings := make([]string, 0, len(results))
		for _, r := range results {
			findings = append(findings, summarizeSnippet(r.Metadata["path"], r.Content))
		}
		insights = append(insights, Insight{Query: query, Findings: findings})
	}

	return &Result{
		ProcessingStatus: StatusCompleted,
		DocumentCount:    len(docs),
		Insights:         insights,
		Patterns:         extractPatterns(analysis),
		KnowledgeGraph:   buildKnowledgeGraph(analysis),
	}, nil
}

func (p *Pipeline) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(p.embeddingModel),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		return resp.Data[0].Embedding, nil
	}
}

const maxChunkBytes = 2000

// buildDocuments chunks each file into embedding-sized documents.
func buildDocuments(analysis *fetcher.RepoAnalysis) []chromem.Document {
	var docs []chromem.Document
	for _, file := range analysis.Files {
		chunks := chunkContent(file.Content, maxChunkBytes)
		for i, chunk := range chunks {
			docs = append(docs, chromem.Document{
				ID:      fmt.Sprintf("%s#%d", file.Path, i),
				Content: chunk,
				Metadata: map[string]string{
					"path": file.Path,
				},
			})
		}
	}
	return docs
}

func chunkContent(content string, size int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var chunks []string
	for len(content) > size {
		cut := size
		// Prefer breaking on a line boundary.
		if idx := strings.LastIndexByte(content[:size], '\n'); idx > size/2 {
			cut = idx
		} else {
			cut = runeBoundary(content, cut)
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	chunks = append(chunks, content)
	return chunks
}

// runeBoundary backs cut up to the start of a rune so slicing never
// splits a multi-byte character.
func runeBoundary(s string, cut int) int {
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return cut
}

func summarizeSnippet(filePath, content string) string {
	content = strings.TrimSpace(content)
	if len(content) > 200 {
		content = content[:runeBoundary(content, 200)] + "..."
	}
	content = strings.ReplaceAll(content, "\n", " ")
	return fmt.Sprintf("%s: %s", filePath, content)
}

// extractPatterns reports recognizable structural patterns from the
// file set, independent of the vector index.
func extractPatterns(analysis *fetcher.RepoAnalysis) []string {
	var patterns []string
	add := func(p string) { patterns = append(patterns, p) }

	hasFile := func(names ...string) bool {
		for _, file := range analysis.Files {
			base := strings.ToLower(path.Base(file.Path))
			for _, n := range names {
				if base == n {
					return true
				}
			}
		}
		return false
	}

	if hasFile("dockerfile") {
		add("containerized deployment")
	}
	if hasFile("docker-compose.yml", "docker-compose.yaml") {
		add("multi-service composition")
	}
	if hasFile("makefile") {
		add("make-driven build")
	}
	if hasFile("package.json", "go.mod", "requirements.txt", "pyproject.toml", "cargo.toml") {
		add("declared dependency manifest")
	}
	if hasFile("readme.md", "readme.rst", "readme") {
		add("documented entry point")
	}

	for _, tech := range analysis.Technologies {
		switch tech {
		case "Flask", "Django", "FastAPI", "Gin", "Express":
			add("web service (" + tech + ")")
		}
	}

	if patterns == nil {
		patterns = []string{}
	}
	return patterns
}

// buildKnowledgeGraph links the repository to its detected languages,
// technologies, and files.
func buildKnowledgeGraph(analysis *fetcher.RepoAnalysis) map[string][]string {
	graph := map[string][]string{
		"languages":    {},
		"technologies": {},
		"files":        {},
	}
	for lang := range analysis.Languages {
		graph["languages"] = append(graph["languages"], lang)
	}
	graph["technologies"] = append(graph["technologies"], analysis.Technologies...)
	for _, file := range analysis.Files {
		graph["files"] = append(graph["files"], file.Path)
	}
	return graph
}
