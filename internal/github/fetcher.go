package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
)

// Default course repository.
const (
	DefaultOwner    = "Cal-CS-61A-Staff"
	DefaultRepo     = "cs61a-website"
	DefaultBasePath = "src"
)

// Repo identifies a directory of markdown pages in a repository.
type Repo struct {
	Owner    string
	Name     string
	BasePath string
	Ref      string // branch, tag or commit; empty for the default branch
}

// FetchedDoc represents a markdown document fetched from GitHub
type FetchedDoc struct {
	Path    string // Relative path within the base directory
	Content string // Full markdown content
	SHA     string // File's Git blob SHA
	URL     string // Browsable GitHub URL
}

// Fetcher lists and downloads markdown pages from one repository directory.
type Fetcher struct {
	client *Client
	repo   Repo
}

// NewFetcher creates a new document fetcher. Empty repo fields take the defaults.
func NewFetcher(client *Client, repo Repo) *Fetcher {
	if repo.Owner == "" {
		repo.Owner = DefaultOwner
	}
	if repo.Name == "" {
		repo.Name = DefaultRepo
	}
	if repo.BasePath == "" {
		repo.BasePath = DefaultBasePath
	}
	return &Fetcher{client: client, repo: repo}
}

// Repository returns "owner/name".
func (f *Fetcher) Repository() string {
	return f.repo.Owner + "/" + f.repo.Name
}

func (f *Fetcher) contentOptions() *github.RepositoryContentGetOptions {
	if f.repo.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.repo.Ref}
}

// ListDocs recursively lists all markdown files under the base directory.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listDocsRecursive(ctx, f.repo.BasePath, "")
}

func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.repo.Owner,
		f.repo.Name,
		fullPath,
		f.contentOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") {
				docs = append(docs, itemRelPath)
			}

		case "dir":
			subDocs, err := f.listDocsRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

// FetchDoc fetches the content of a specific markdown file
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.repo.BasePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx,
		f.repo.Owner,
		f.repo.Name,
		fullPath,
		f.contentOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}

	if fileContent == nil || fileContent.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	return &FetchedDoc{
		Path:    relativePath,
		Content: string(content),
		SHA:     fileContent.GetSHA(),
		URL:     fileContent.GetHTMLURL(),
	}, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the base directory
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.repo.Owner,
		f.repo.Name,
		&github.CommitsListOptions{
			SHA:  f.repo.Ref,
			Path: f.repo.BasePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.repo.BasePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
