package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bull/course-rag/internal/course"
)

// TestChunk_LabScenario checks the short full-width punctuation example.
func TestChunk_LabScenario(t *testing.T) {
	section := course.Section{
		Title:   "Lab 0",
		Content: "截止日期是6月30日。 关注环境设置。 完成终端练习。",
		Type:    course.Assignment,
		Topics:  []string{"环境配置"},
	}

	chunks := NewChunker(20).Chunk(section)

	if len(chunks) < 2 || len(chunks) > 3 {
		t.Fatalf("Expected 2-3 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "截止日期是6月30日 关注环境设置" {
		t.Errorf("Chunk 0 content: got %q", chunks[0].Content)
	}
	if chunks[1].Content != "完成终端练习" {
		t.Errorf("Chunk 1 content: got %q", chunks[1].Content)
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 20 {
			t.Errorf("Chunk %d has %d characters, exceeds 20", i, n)
		}
	}
}

// TestChunk_LengthBound verifies every chunk fits, or is a single oversized sentence.
func TestChunk_LengthBound(t *testing.T) {
	long := strings.Repeat("递归", 30) // 60 characters, one sentence
	content := "Short one. " + long + "。Another short sentence! Last? " + strings.Repeat("x", 10) + "."

	sentences := SplitSentences(content)
	atomic := make(map[string]bool, len(sentences))
	for _, s := range sentences {
		atomic[s] = true
	}

	for _, maxLen := range []int{5, 20, 50, 200} {
		chunks := NewChunker(maxLen).Chunk(course.Section{Title: "T", Content: content, Type: course.Lecture})
		for _, c := range chunks {
			if c.Content == "" {
				t.Errorf("maxLen %d: empty chunk", maxLen)
			}
			if utf8.RuneCountInString(c.Content) > maxLen && !atomic[c.Content] {
				t.Errorf("maxLen %d: chunk %q exceeds bound and is not a single sentence", maxLen, c.Content)
			}
		}
	}
}

// TestChunk_OversizedSentenceNotSplit verifies a long sentence becomes its own chunk.
func TestChunk_OversizedSentenceNotSplit(t *testing.T) {
	long := strings.Repeat("a", 30)
	got := Pack([]string{"hi", long, "yo"}, 10)
	want := []string{"hi", long, "yo"}

	if len(got) != len(want) {
		t.Fatalf("Expected %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// TestChunk_Coverage verifies chunks reproduce the sentences in order with nothing lost.
func TestChunk_Coverage(t *testing.T) {
	content := "CS61A 是入门课程。本课程教授 Python！学生将学习函数? Projects matter. 递归很重要。"
	sentences := SplitSentences(content)

	chunks := NewChunker(15).Chunk(course.Section{Title: "Intro", Content: content, Type: course.Lecture})

	var rebuilt []string
	for _, c := range chunks {
		rebuilt = append(rebuilt, c.Content)
	}
	if strings.Join(rebuilt, " ") != strings.Join(sentences, " ") {
		t.Errorf("Coverage mismatch:\n got  %q\n want %q", strings.Join(rebuilt, " "), strings.Join(sentences, " "))
	}
}

// TestChunk_MetadataPropagation verifies each chunk carries its section's labels.
func TestChunk_MetadataPropagation(t *testing.T) {
	section := course.Section{
		Title:      "期中考试 1",
		Content:    "期中考试定于7月17日。仅限线下考试。考试地点将在考试前一周公布。",
		Week:       course.IntPtr(3),
		Difficulty: course.Intermediate,
		Topics:     []string{"Python 基础", "函数"},
		Type:       course.Exam,
	}

	chunks := NewChunker(10).Chunk(section)
	if len(chunks) == 0 {
		t.Fatal("Expected chunks")
	}

	seen := make(map[string]bool)
	for _, c := range chunks {
		if c.Metadata.Chapter != section.Title {
			t.Errorf("Chapter: expected %q, got %q", section.Title, c.Metadata.Chapter)
		}
		if c.Metadata.Type != section.Type {
			t.Errorf("Type: expected %q, got %q", section.Type, c.Metadata.Type)
		}
		if c.Metadata.Topic != "Python 基础, 函数" {
			t.Errorf("Topic: got %q", c.Metadata.Topic)
		}
		if c.Metadata.Week == nil || *c.Metadata.Week != 3 {
			t.Errorf("Week: got %v", c.Metadata.Week)
		}
		if c.ID == "" || seen[c.ID] {
			t.Errorf("Chunk ID %q is empty or duplicated", c.ID)
		}
		seen[c.ID] = true
		if id, err := uuid.Parse(c.ID); err != nil || id.Version() != 4 {
			t.Errorf("Chunk ID %q is not a UUIDv4", c.ID)
		}
	}
}

// TestChunk_Deterministic verifies boundaries depend only on text and bound.
func TestChunk_Deterministic(t *testing.T) {
	content := "One. Two two. Three three three. Four four four four. 五。六六。"
	a := Pack(SplitSentences(content), 12)
	b := Pack(SplitSentences(content), 12)

	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Errorf("Non-deterministic boundaries: %q vs %q", a, b)
	}
}

func TestSplitSentences_DropsEmptyFragments(t *testing.T) {
	got := SplitSentences("  ...Hello!!! World?。  ！ ")
	if len(got) != 2 || got[0] != "Hello" || got[1] != "World" {
		t.Errorf("Unexpected fragments: %q", got)
	}

	if got := SplitSentences("   "); len(got) != 0 {
		t.Errorf("Expected no fragments for blank text, got %q", got)
	}
}

func TestChunkAll_PreservesSectionOrder(t *testing.T) {
	sections := []course.Section{
		{Title: "A", Content: "First.", Type: course.Lecture},
		{Title: "B", Content: "", Type: course.Policy},
		{Title: "C", Content: "Third.", Type: course.Exam},
	}

	chunks := NewChunker(0).ChunkAll(sections)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Chapter != "A" || chunks[1].Metadata.Chapter != "C" {
		t.Errorf("Unexpected chapter order: %q, %q", chunks[0].Metadata.Chapter, chunks[1].Metadata.Chapter)
	}
}
