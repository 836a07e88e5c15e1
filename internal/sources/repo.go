package sources

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/bull/course-rag/internal/course"
	"github.com/bull/course-rag/internal/github"
	"github.com/bull/course-rag/internal/markdown"
)

// DocSource lists and fetches markdown pages.
type DocSource interface {
	Repository() string
	ListDocs(ctx context.Context) ([]string, error)
	FetchDoc(ctx context.Context, relativePath string) (*github.FetchedDoc, error)
	GetLatestCommitSHA(ctx context.Context) (string, error)
}

// FailedDoc represents a page that could not be turned into sections.
type FailedDoc struct {
	Path   string
	Reason string
}

// RepoProvider turns the markdown pages of a course repository into sections,
// one per H1/H2 block.
type RepoProvider struct {
	docs     DocSource
	parser   *markdown.SectionParser
	maxPages int
	logger   *slog.Logger

	// Populated by the last Sections call.
	CommitSHA  string
	FailedDocs []FailedDoc
}

// NewRepoProvider creates a provider over docs. maxPages <= 0 means no limit.
func NewRepoProvider(docs DocSource, maxPages int, logger *slog.Logger) *RepoProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoProvider{
		docs:     docs,
		parser:   markdown.NewSectionParser(),
		maxPages: maxPages,
		logger:   logger,
	}
}

func (p *RepoProvider) Name() string { return "github:" + p.docs.Repository() }

// Sections fetches every page and extracts sections. Individual page failures are
// recorded in FailedDocs and skipped; listing failure or an empty result is an error.
func (p *RepoProvider) Sections(ctx context.Context) ([]course.Section, error) {
	p.FailedDocs = nil

	sha, err := p.docs.GetLatestCommitSHA(ctx)
	if err != nil {
		p.logger.Warn("Could not resolve latest commit", "repository", p.docs.Repository(), "error", err)
	}
	p.CommitSHA = sha

	paths, err := p.docs.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	if p.maxPages > 0 && len(paths) > p.maxPages {
		paths = paths[:p.maxPages]
	}
	p.logger.Info("Found course pages", "repository", p.docs.Repository(), "count", len(paths), "commit", sha)

	var sections []course.Section
	for _, docPath := range paths {
		page, err := p.processPage(ctx, docPath)
		if err != nil {
			p.logger.Warn("Failed to process page", "path", docPath, "error", err)
			p.FailedDocs = append(p.FailedDocs, FailedDoc{Path: docPath, Reason: err.Error()})
			continue
		}
		sections = append(sections, page...)
	}

	p.logger.Info("Extracted sections",
		"sections", len(sections),
		"pages", len(paths),
		"failed", len(p.FailedDocs),
	)
	if len(sections) == 0 {
		return nil, ErrNoSections
	}
	return sections, nil
}

func (p *RepoProvider) processPage(ctx context.Context, docPath string) ([]course.Section, error) {
	fetched, err := p.docs.FetchDoc(ctx, docPath)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	page, err := p.parser.Parse([]byte(fetched.Content))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	pageTitle := cleanTitle(page.Title)
	if pageTitle == "" {
		pageTitle = strings.TrimSuffix(path.Base(docPath), path.Ext(docPath))
	}

	var sections []course.Section
	for _, block := range page.Blocks {
		if block.Text == "" {
			continue
		}
		sections = append(sections, sectionFromBlock(docPath, pageTitle, block))
	}
	return sections, nil
}

func sectionFromBlock(docPath, pageTitle string, block markdown.Block) course.Section {
	title := pageTitle
	if bt := cleanTitle(block.Title); bt != "" && bt != pageTitle {
		title = pageTitle + ": " + bt
	}

	lines := strings.Split(block.Text, "\n")
	content := strings.Join(strings.Fields(block.Text), " ")

	return course.Section{
		Title:              title,
		Content:            content,
		Week:               weekFromPath(docPath),
		Difficulty:         inferDifficulty(content),
		Topics:             extractTopics(content),
		Type:               inferType(docPath, content),
		LearningObjectives: matchingLines(lines, objectiveKeys, maxObjectives),
		Prerequisites:      matchingLines(lines, prereqKeys, maxPrerequisites),
	}
}
