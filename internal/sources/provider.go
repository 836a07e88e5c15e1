// Package sources produces course sections for indexing: bundled fixtures,
// local section files, or markdown pages of a course repository.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bull/course-rag/internal/course"
)

// ErrNoSections is returned by a provider that produced nothing usable.
var ErrNoSections = errors.New("no sections")

// Provider yields the sections to index.
type Provider interface {
	Name() string
	Sections(ctx context.Context) ([]course.Section, error)
}

// Selection reports which provider's sections were used.
type Selection struct {
	Sections []course.Section
	Source   string
	Fallback bool  // the primary provider failed and fallback sections were used
	Err      error // primary provider failure, if any
}

// Select returns the primary provider's sections when useReal is set, falling back
// on error or an empty result. With useReal unset the fallback is used directly.
func Select(ctx context.Context, primary, fallback Provider, useReal bool, logger *slog.Logger) (*Selection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if useReal && primary != nil {
		logger.Info("Using real course source", "source", primary.Name())
		sections, err := primary.Sections(ctx)
		if err == nil && len(sections) == 0 {
			err = ErrNoSections
		}
		if err == nil {
			return &Selection{Sections: sections, Source: primary.Name()}, nil
		}
		logger.Warn("Real course source failed, falling back", "source", primary.Name(), "fallback", fallback.Name(), "error", err)

		sections, fbErr := fallback.Sections(ctx)
		if fbErr != nil {
			return nil, fmt.Errorf("fallback %s: %w", fallback.Name(), fbErr)
		}
		return &Selection{Sections: sections, Source: fallback.Name(), Fallback: true, Err: err}, nil
	}

	logger.Info("Using course source", "source", fallback.Name())
	sections, err := fallback.Sections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fallback.Name(), err)
	}
	return &Selection{Sections: sections, Source: fallback.Name()}, nil
}

// Dump writes sections as indented JSON for inspection.
func Dump(path string, sections []course.Section) error {
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
