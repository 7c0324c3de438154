package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// repositoriesService abstracts the go-github calls we use, enabling test
// mocks.
type repositoriesService interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
	GetLatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, *github.Response, error)
}

// GitHubEnricher fills discussion metadata from the GitHub API.
type GitHubEnricher struct {
	repos repositoriesService
}

// NewGitHubEnricher builds an enricher. An empty token uses unauthenticated
// (rate-limited) access.
func NewGitHubEnricher(ctx context.Context, token string) *GitHubEnricher {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}
	return &GitHubEnricher{repos: client.Repositories}
}

// Enrich looks up the repository's primary language and latest release tag.
// A missing release is not an error; plenty of repositories have none.
func (g *GitHubEnricher) Enrich(ctx context.Context, repository string) (Meta, error) {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" {
		return Meta{}, fmt.Errorf(`ingest: repository must be "owner/name", got %q`, repository)
	}

	repo, _, err := g.repos.Get(ctx, owner, name)
	if err != nil {
		return Meta{}, fmt.Errorf("ingest: get repository %s: %w", repository, err)
	}

	meta := Meta{Language: repo.GetLanguage()}
	release, _, err := g.repos.GetLatestRelease(ctx, owner, name)
	if err == nil {
		meta.Release = release.GetTagName()
	}
	return meta, nil
}
