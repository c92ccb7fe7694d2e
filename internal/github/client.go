package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/repodoc/docgen_server/config"
)

// APIError reports a failed GitHub API call. UserMessage is safe to show
// and persist; RawError carries the full detail for logs only.
type APIError struct {
	StatusCode  int
	UserMessage string
	RawError    string
}

func (e *APIError) Error() string {
	return e.UserMessage
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// Repository is the subset of repo metadata the pipeline uses.
type Repository struct {
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Description   string   `json:"description"`
	Language      string   `json:"language"`
	Stars         int      `json:"stargazers_count"`
	Forks         int      `json:"forks_count"`
	DefaultBranch string   `json:"default_branch"`
	Topics        []string `json:"topics"`
	License       *struct {
		Name   string `json:"name"`
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

// ContentEntry is one entry from the repository contents listing.
type ContentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // file or dir
	Size int64  `json:"size"`
}

type fileContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Client is a thin typed wrapper over the GitHub REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(cfg *config.GitHubConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL: cfg.APIBaseURL,
		token:   cfg.Token,
	}
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, ref RepoRef) (*Repository, error) {
	var repo Repository
	path := fmt.Sprintf("/repos/%s/%s", ref.Owner, ref.Name)
	if err := c.get(ctx, path, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetLanguages returns the byte counts per language.
func (c *Client) GetLanguages(ctx context.Context, ref RepoRef) (map[string]int64, error) {
	langs := make(map[string]int64)
	path := fmt.Sprintf("/repos/%s/%s/languages", ref.Owner, ref.Name)
	if err := c.get(ctx, path, &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// ListContents lists the entries of a directory ("" for the repo root).
func (c *Client) ListContents(ctx context.Context, ref RepoRef, dir string) ([]ContentEntry, error) {
	var entries []ContentEntry
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", ref.Owner, ref.Name, dir)
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetFileContent fetches and decodes a single file.
func (c *Client) GetFileContent(ctx context.Context, ref RepoRef, filePath string) ([]byte, error) {
	var fc fileContent
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", ref.Owner, ref.Name, filePath)
	if err := c.get(ctx, path, &fc); err != nil {
		return nil, err
	}

	if fc.Encoding != "base64" {
		return []byte(fc.Content), nil
	}

	data, err := base64.StdEncoding.DecodeString(removeNewlines(fc.Content))
	if err != nil {
		return nil, &APIError{
			UserMessage: fmt.Sprintf("failed to decode %s", filePath),
			RawError:    err.Error(),
		}
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &APIError{UserMessage: "failed to build request", RawError: err.Error()}
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{
			UserMessage: "could not reach GitHub",
			RawError:    err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &APIError{
			UserMessage: "failed to read GitHub response",
			RawError:    err.Error(),
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &APIError{
			StatusCode:  resp.StatusCode,
			UserMessage: "repository not found or not accessible",
			RawError:    string(body),
		}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{
			StatusCode:  resp.StatusCode,
			UserMessage: "GitHub API rate limit exceeded, try again later",
			RawError:    string(body),
		}
	case resp.StatusCode != http.StatusOK:
		return &APIError{
			StatusCode:  resp.StatusCode,
			UserMessage: fmt.Sprintf("GitHub API returned status %d", resp.StatusCode),
			RawError:    string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{
			UserMessage: "unexpected GitHub response format",
			RawError:    err.Error(),
		}
	}
	return nil
}

func removeNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
