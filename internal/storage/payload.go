package storage

import (
	"math"
	"sort"

	"github.com/bull/course-rag/internal/course"
)

// Payload field names. Only these keys are written or read back; anything else
// found in a stored payload is ignored.
const (
	fieldContent    = "content"
	fieldChapter    = "chapter"
	fieldTopic      = "topic"
	fieldDifficulty = "difficulty"
	fieldWeek       = "week"
	fieldType       = "type"
	fieldGeneration = "generation"
)

// payload is the fixed record stored next to each vector.
type payload struct {
	Content    string
	Chapter    string
	Topic      string
	Difficulty string
	Week       *int
	Type       string
	Generation string
}

func payloadFor(e Entry) payload {
	return payload{
		Content:    e.Content,
		Chapter:    e.Metadata.Chapter,
		Topic:      e.Metadata.Topic,
		Difficulty: string(e.Metadata.Difficulty),
		Week:       e.Metadata.Week,
		Type:       string(e.Metadata.Type),
		Generation: e.Generation,
	}
}

// asMap renders the payload for stores with a map-shaped payload.
// The week key is omitted when unset.
func (p payload) asMap() map[string]any {
	m := map[string]any{
		fieldContent:    p.Content,
		fieldChapter:    p.Chapter,
		fieldTopic:      p.Topic,
		fieldDifficulty: p.Difficulty,
		fieldType:       p.Type,
		fieldGeneration: p.Generation,
	}
	if p.Week != nil {
		m[fieldWeek] = int64(*p.Week)
	}
	return m
}

// metadata coerces stored strings back into the course enums.
func (p payload) metadata() course.Metadata {
	return course.Metadata{
		Chapter:    p.Chapter,
		Topic:      p.Topic,
		Difficulty: course.ParseDifficulty(p.Difficulty),
		Week:       p.Week,
		Type:       course.ParseSectionType(p.Type),
	}
}

// cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK sorts matches by descending score (ties by ID) and keeps the first k.
func topK(matches []Match, k int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
