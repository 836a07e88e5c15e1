// Package markdown splits course pages into titled blocks of plain text.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
	"gopkg.in/yaml.v3"
)

// FrontMatter is the subset of page front matter the parser understands.
type FrontMatter struct {
	Title string `yaml:"title"`
}

// Block is the text under one H1 or H2 heading, up to the next H1 or H2.
type Block struct {
	Index      int    // Position in page (0, 1, 2...)
	Title      string // Heading text, empty for text before the first heading
	HeaderPath string // Hierarchy: "# Doc Title > ## Section Name"
	Text       string // Plain text, one trimmed line per paragraph or list item
}

// Page is a parsed markdown document.
type Page struct {
	Title  string // front matter title, else the first heading
	Blocks []Block
}

// SectionParser splits markdown documents at header boundaries.
type SectionParser struct {
	md       goldmark.Markdown
	maxDepth int
}

// NewSectionParser creates a parser that splits at H1 and H2.
func NewSectionParser() *SectionParser {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &SectionParser{md: md, maxDepth: 2}
}

// Parse splits a page into blocks. Blocks do not overlap: a parent heading's
// block ends where its first child heading starts.
func (p *SectionParser) Parse(source []byte) (*Page, error) {
	fm, body, err := SplitFrontMatter(source)
	if err != nil {
		return nil, err
	}
	page := &Page{Title: strings.TrimSpace(fm.Title)}

	doc := p.md.Parser().Parse(text.NewReader(body))

	tree, err := toc.Inspect(doc, body,
		toc.MinDepth(1),
		toc.MaxDepth(p.maxDepth),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []heading
	flatten(tree.Items, nil, &headings)

	if len(headings) == 0 {
		if t := p.PlainText(body); t != "" {
			page.Blocks = append(page.Blocks, Block{Text: t})
		}
		return page, nil
	}

	// Locate each heading's line in the body.
	type located struct {
		heading
		lineStart, bodyStart int
	}
	var found []located
	for _, h := range headings {
		node := findHeaderByID(doc, h.id)
		if node == nil || node.Lines().Len() == 0 {
			continue
		}
		seg := node.Lines().At(0)
		found = append(found, located{
			heading:   h,
			lineStart: lineStart(body, seg.Start),
			bodyStart: lineEnd(body, seg.Stop),
		})
	}
	if len(found) == 0 {
		return page, nil
	}

	if pre := p.PlainText(body[:found[0].lineStart]); pre != "" {
		page.Blocks = append(page.Blocks, Block{Text: pre})
	}

	for i, h := range found {
		end := len(body)
		if i+1 < len(found) {
			end = found[i+1].lineStart
		}
		start := min(h.bodyStart, end)

		page.Blocks = append(page.Blocks, Block{
			Index:      len(page.Blocks),
			Title:      h.title,
			HeaderPath: formatHeaderPath(h.path),
			Text:       p.PlainText(body[start:end]),
		})
	}

	if page.Title == "" {
		page.Title = found[0].title
	}
	return page, nil
}

// PlainText renders markdown as plain text. Markup is dropped, code blocks are
// kept verbatim, and blank lines are removed.
func (p *SectionParser) PlainText(source []byte) string {
	doc := p.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				buf.WriteByte('\n')
				return ast.WalkSkipChildren, nil
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *ast.ListItem:
			if !entering {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// SplitFrontMatter separates a leading YAML front matter block from the body.
// A page without front matter returns a zero FrontMatter and the source unchanged.
func SplitFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	src := bytes.TrimPrefix(source, []byte("\ufeff"))
	if !bytes.HasPrefix(src, []byte("---\n")) && !bytes.HasPrefix(src, []byte("---\r\n")) {
		return fm, source, nil
	}

	rest := src[bytes.IndexByte(src, '\n')+1:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, source, nil
	}

	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return fm, nil, fmt.Errorf("parse front matter: %w", err)
	}

	body := rest[end+len("\n---"):]
	return fm, body[lineEnd(body, 0):], nil
}

type heading struct {
	id    string
	title string
	path  []string
}

// flatten walks TOC items in document order, recording each heading's ancestry.
func flatten(items toc.Items, ancestors []string, out *[]heading) {
	for _, item := range items {
		if len(item.Title) == 0 {
			// Placeholder for a skipped heading level.
			flatten(item.Items, ancestors, out)
			continue
		}
		path := make([]string, len(ancestors), len(ancestors)+1)
		copy(path, ancestors)
		path = append(path, string(item.Title))

		if len(item.ID) > 0 {
			*out = append(*out, heading{id: string(item.ID), title: string(item.Title), path: path})
		}
		flatten(item.Items, path, out)
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	var parts []string
	for i, segment := range path {
		prefix := strings.Repeat("#", i+1)
		parts = append(parts, fmt.Sprintf("%s %s", prefix, segment))
	}

	return strings.Join(parts, " > ")
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok {
				if b, isBytes := headingID.([]byte); isBytes && string(b) == id {
					found = n
					return ast.WalkStop, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the offset just past the newline ending the line containing pos.
func lineEnd(source []byte, pos int) int {
	if i := bytes.IndexByte(source[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(source)
}
