// Package course defines the syllabus data model shared by the indexing and query paths.
package course

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Difficulty is the self-reported level of a syllabus section.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// SectionType classifies what kind of course material a section is.
type SectionType string

const (
	Assignment SectionType = "assignment"
	Exam       SectionType = "exam"
	Lecture    SectionType = "lecture"
	Policy     SectionType = "policy"
)

// ErrInvalidSection is returned by Section.Validate.
var ErrInvalidSection = errors.New("invalid section")

// ParseDifficulty maps a stored string back to a Difficulty.
// Unknown values coerce to the empty Difficulty.
func ParseDifficulty(s string) Difficulty {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Beginner, Intermediate, Advanced:
		return d
	default:
		return ""
	}
}

// ParseSectionType maps a stored string back to a SectionType.
// Unknown values coerce to the empty SectionType.
func ParseSectionType(s string) SectionType {
	switch t := SectionType(strings.ToLower(strings.TrimSpace(s))); t {
	case Assignment, Exam, Lecture, Policy:
		return t
	default:
		return ""
	}
}

// Section is a labeled unit of source material produced by a section provider.
// Sections are treated as immutable once produced.
type Section struct {
	Title              string      `json:"title" yaml:"title"`
	Content            string      `json:"content" yaml:"content"`
	Week               *int        `json:"week,omitempty" yaml:"week,omitempty"`
	Difficulty         Difficulty  `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Topics             []string    `json:"topics" yaml:"topics"`
	Type               SectionType `json:"type" yaml:"type"`
	LearningObjectives []string    `json:"learningObjectives,omitempty" yaml:"learningObjectives,omitempty"`
	Prerequisites      []string    `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
}

// Validate reports whether the section is usable for indexing.
func (s Section) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidSection)
	}
	if s.Week != nil && *s.Week < 0 {
		return fmt.Errorf("%w: %q has negative week %d", ErrInvalidSection, s.Title, *s.Week)
	}
	if s.Difficulty != "" && ParseDifficulty(string(s.Difficulty)) == "" {
		return fmt.Errorf("%w: %q has unknown difficulty %q", ErrInvalidSection, s.Title, s.Difficulty)
	}
	if ParseSectionType(string(s.Type)) == "" {
		return fmt.Errorf("%w: %q has unknown type %q", ErrInvalidSection, s.Title, s.Type)
	}
	return nil
}

// Metadata is attached to every chunk and round-trips through the vector store.
type Metadata struct {
	Chapter    string      `json:"chapter"`
	Topic      string      `json:"topic"`
	Difficulty Difficulty  `json:"difficulty,omitempty"`
	Week       *int        `json:"week,omitempty"`
	Type       SectionType `json:"type"`
}

// MetadataFor derives chunk metadata from the section it was cut from.
func MetadataFor(s Section) Metadata {
	var week *int
	if s.Week != nil {
		w := *s.Week
		week = &w
	}
	return Metadata{
		Chapter:    s.Title,
		Topic:      strings.Join(s.Topics, ", "),
		Difficulty: s.Difficulty,
		Week:       week,
		Type:       s.Type,
	}
}

// Chunk is the atomic retrievable unit.
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// ScoredChunk is a retrieved chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"similarity"`
}

// Answer is the grounded response to a question. It is never persisted.
type Answer struct {
	Answer     string        `json:"answer"`
	Sources    []ScoredChunk `json:"sources"`
	Confidence float64       `json:"confidence"`
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	IsInitialized     bool      `json:"isInitialized"`
	HasEmbeddingModel bool      `json:"hasEmbeddingModel"`
	State             string    `json:"state"`
	ChunkCount        int       `json:"chunkCount"`
	LastIndexedAt     time.Time `json:"lastIndexedAt,omitzero"`
}

// IntPtr is a small helper for optional week values.
func IntPtr(v int) *int { return &v }
