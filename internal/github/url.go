package github

import (
	"fmt"
	"regexp"
	"strings"
)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

var repoPathPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepoURL extracts owner and repository name from the URL forms
// users paste: https://github.com/o/r, github.com/o/r, git@github.com:o/r,
// each with or without a trailing .git or slash.
func ParseRepoURL(rawURL string) (RepoRef, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return RepoRef{}, fmt.Errorf("repository URL is required")
	}

	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")

	if strings.HasPrefix(s, "git@github.com:") {
		s = "github.com/" + strings.TrimPrefix(s, "git@github.com:")
	}

	if !strings.HasPrefix(s, "github.com/") {
		return RepoRef{}, fmt.Errorf("only github.com repositories are supported")
	}

	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("URL must include both owner and repository name")
	}

	owner, name := parts[0], parts[1]
	if !repoPathPattern.MatchString(owner) || !repoPathPattern.MatchString(name) {
		return RepoRef{}, fmt.Errorf("invalid characters in repository path")
	}

	return RepoRef{Owner: owner, Name: name}, nil
}
