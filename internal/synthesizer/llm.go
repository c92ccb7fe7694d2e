package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/repodoc/docgen_server/config"
	"github.com/repodoc/docgen_server/internal/fetcher"
	"github.com/repodoc/docgen_server/internal/rag"
)

// SynthesisError reports a failed generation. UserMessage is safe to
// persist on the job; RawError stays in the logs.
type SynthesisError struct {
	UserMessage string
	RawError    string
}

func (e *SynthesisError) Error() string {
	return e.UserMessage
}

type llmClient struct {
	client    *openai.Client
	chatModel string
}

// newLLMClient returns nil when no API key is configured, which leaves
// the generator on its template baseline.
func newLLMClient(cfg *config.LLMConfig) *llmClient {
	if cfg.APIKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &llmClient{
		client:    openai.NewClientWithConfig(clientCfg),
		chatModel: cfg.ChatModel,
	}
}

func (l *llmClient) enabled() bool {
	return l != nil && l.client != nil
}

// enrich rewrites the narrative documents with model output. The
// templates remain as the fallback shape; a chat failure aborts the
// whole synthesis so a partially enriched bundle never ships.
func (l *llmClient) enrich(ctx context.Context, bundle *Bundle, analysis *fetcher.RepoAnalysis, ragResult *rag.Result) error {
	contextBlock := buildContextBlock(analysis, ragResult)

	docs := []struct {
		name   string
		prompt string
		target *string
	}{
		{
			name:   "readme",
			prompt: "Write a polished README.md for this repository. Include a project summary, tech stack, getting-started pointers, and documentation links.",
			target: &bundle.Readme,
		},
		{
			name:   "api_docs",
			prompt: "Write an API reference in markdown for this repository, describing its public interfaces and modules based on the provided files.",
			target: &bundle.APIDocs,
		},
		{
			name:   "architecture_docs",
			prompt: "Write an architecture overview in markdown for this repository: components, data flow, and notable design decisions.",
			target: &bundle.ArchitectureDocs,
		},
	}

	for _, doc := range docs {
		content, err := l.complete(ctx, doc.prompt, contextBlock)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &SynthesisError{
				UserMessage: fmt.Sprintf("documentation generation failed while writing the %s", doc.name),
				RawError:    err.Error(),
			}
		}
		if strings.TrimSpace(content) != "" {
			*doc.target = content
		}
	}

	return nil
}

func (l *llmClient) complete(ctx context.Context, prompt, contextBlock string) (string, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a technical writer producing accurate, concise repository documentation in markdown. Use only facts present in the provided context.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt + "\n\n" + contextBlock,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

const maxContextFileBytes = 3000

func buildContextBlock(analysis *fetcher.RepoAnalysis, ragResult *rag.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Repository: %s/%s\n", analysis.Owner, analysis.Name)
	if analysis.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", analysis.Description)
	}
	fmt.Fprintf(&sb, "Primary language: %s\n", analysis.PrimaryLang)
	if len(analysis.Technologies) > 0 {
		fmt.Fprintf(&sb, "Technologies: %s\n", strings.Join(analysis.Technologies, ", "))
	}

	if ragResult != nil && ragResult.ProcessingStatus == rag.StatusCompleted {
		sb.WriteString("\nSemantic insights:\n")
		for _, insight := range ragResult.Insights {
			fmt.Fprintf(&sb, "- %s\n", insight.Query)
			for _, finding := range insight.Findings {
				fmt.Fprintf(&sb, "  - %s\n", finding)
			}
		}
	}

	sb.WriteString("\nFiles:\n")
	for _, file := range analysis.Files {
		content := file.Content
		if len(content) > maxContextFileBytes {
			cut := maxContextFileBytes
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s\n", file.Path, content)
	}

	return sb.String()
}
