package markdown

import (
	"strings"
	"testing"
)

// TestParse_BasicHeaders tests splitting with H1 and multiple H2s.
func TestParse_BasicHeaders(t *testing.T) {
	input := `# Getting Started

Introduction text here.

## Installation

Install steps here.

## Configuration

Config details here.
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// Expect 3 blocks: H1, H1>H2 Installation, H1>H2 Configuration
	if len(page.Blocks) != 3 {
		t.Fatalf("Expected 3 blocks, got %d", len(page.Blocks))
	}
	if page.Title != "Getting Started" {
		t.Errorf("Page title: expected 'Getting Started', got %q", page.Title)
	}

	expected := []struct {
		path string
		text string
	}{
		{"# Getting Started", "Introduction text here."},
		{"# Getting Started > ## Installation", "Install steps here."},
		{"# Getting Started > ## Configuration", "Config details here."},
	}
	for i, want := range expected {
		b := page.Blocks[i]
		if b.Index != i {
			t.Errorf("Block %d index: expected %d, got %d", i, i, b.Index)
		}
		if b.HeaderPath != want.path {
			t.Errorf("Block %d HeaderPath: expected %q, got %q", i, want.path, b.HeaderPath)
		}
		if b.Text != want.text {
			t.Errorf("Block %d Text: expected %q, got %q", i, want.text, b.Text)
		}
	}
}

// TestParse_BlocksDoNotOverlap verifies a parent block stops at its first child heading.
func TestParse_BlocksDoNotOverlap(t *testing.T) {
	input := `# Course

Overview.

## Labs

Lab details.
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if strings.Contains(page.Blocks[0].Text, "Lab details") {
		t.Errorf("H1 block should not contain child content: %q", page.Blocks[0].Text)
	}
	if strings.Contains(page.Blocks[1].Text, "Labs") {
		t.Errorf("Block text should not repeat its heading: %q", page.Blocks[1].Text)
	}
}

// TestParse_NestedContent tests that code blocks, lists and H3s stay in their H2 block as plain text.
func TestParse_NestedContent(t *testing.T) {
	input := `# Homework 1

Overview.

## Problems

Write the following **functions**:

` + "```python" + `
def square(x):
    return x * x
` + "```" + `

### Submission

- Run ` + "`python3 ok`" + `
- Submit [online](https://example.org)
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// H3 is not a split boundary
	if len(page.Blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(page.Blocks))
	}

	text := page.Blocks[1].Text
	for _, want := range []string{
		"Write the following functions:",
		"def square(x):",
		"Submission",
		"Run python3 ok",
		"Submit online",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Problems block missing %q in %q", want, text)
		}
	}
	if strings.Contains(text, "**") || strings.Contains(text, "https://example.org") {
		t.Errorf("Markup should be stripped: %q", text)
	}
}

// TestParse_NoHeaders tests a document with no headers.
func TestParse_NoHeaders(t *testing.T) {
	input := `This is a document with no headers.

Just plain text content.
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(page.Blocks) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(page.Blocks))
	}
	if page.Blocks[0].HeaderPath != "" || page.Blocks[0].Title != "" {
		t.Errorf("Expected untitled block, got %+v", page.Blocks[0])
	}
	want := "This is a document with no headers.\nJust plain text content."
	if page.Blocks[0].Text != want {
		t.Errorf("Expected %q, got %q", want, page.Blocks[0].Text)
	}
}

// TestParse_FrontMatterAndPreamble tests front matter title and text before the first heading.
func TestParse_FrontMatterAndPreamble(t *testing.T) {
	input := `---
title: "Lab 0: Getting Started"
weight: 10
---

Due Tuesday.

## Setup

Install Python 3.
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if page.Title != "Lab 0: Getting Started" {
		t.Errorf("Expected front matter title, got %q", page.Title)
	}
	if len(page.Blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(page.Blocks))
	}
	if page.Blocks[0].Title != "" || page.Blocks[0].Text != "Due Tuesday." {
		t.Errorf("Unexpected preamble block: %+v", page.Blocks[0])
	}
	if page.Blocks[1].HeaderPath != "# Setup" || page.Blocks[1].Index != 1 {
		t.Errorf("Unexpected setup block: %+v", page.Blocks[1])
	}
}

// TestSplitFrontMatter_Invalid verifies malformed front matter is reported.
func TestSplitFrontMatter_Invalid(t *testing.T) {
	_, _, err := SplitFrontMatter([]byte("---\ntitle: [unclosed\n---\nbody\n"))
	if err == nil {
		t.Error("Expected error for malformed front matter")
	}

	fm, body, err := SplitFrontMatter([]byte("# No front matter\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fm.Title != "" || string(body) != "# No front matter\n" {
		t.Errorf("Expected source unchanged, got %q / %q", fm.Title, body)
	}
}

// TestParse_MultipleH1s tests multiple top-level sections.
func TestParse_MultipleH1s(t *testing.T) {
	input := `# First Section

First content.

## First Subsection

First subsection content.

# Second Section

Second content.

## Second Subsection

Second subsection content.
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	expectedPaths := []string{
		"# First Section",
		"# First Section > ## First Subsection",
		"# Second Section",
		"# Second Section > ## Second Subsection",
	}
	if len(page.Blocks) != len(expectedPaths) {
		t.Fatalf("Expected %d blocks, got %d", len(expectedPaths), len(page.Blocks))
	}
	for i, expectedPath := range expectedPaths {
		if page.Blocks[i].HeaderPath != expectedPath {
			t.Errorf("Block %d: expected path %q, got %q", i, expectedPath, page.Blocks[i].HeaderPath)
		}
	}
}

// TestParse_EmptySections tests handling of headers with no content.
func TestParse_EmptySections(t *testing.T) {
	input := `# Title

## Empty Section

## Another Section

Some content here.
`

	page, err := NewSectionParser().Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	foundAnother := false
	for _, b := range page.Blocks {
		switch b.Title {
		case "Empty Section":
			if b.Text != "" {
				t.Errorf("Empty section should have no text, got %q", b.Text)
			}
		case "Another Section":
			foundAnother = true
			if b.Text != "Some content here." {
				t.Errorf("'Another Section' block has %q", b.Text)
			}
		}
	}
	if !foundAnother {
		t.Error("Missing 'Another Section' block")
	}
}
