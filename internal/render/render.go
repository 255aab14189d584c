// Package render produces the export form of a contract: a deterministic
// plain-text rendering, or that text wrapped into escaped HTML. Clauses
// appear in document order, numbered, each with its newest version.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/AsiwajuPseudo/contracts/pkg/domain"
)

const (
	FormatText = "text"
	FormatHTML = "html"
)

type Renderer struct{}

func New() *Renderer { return &Renderer{} }

// Render implements the export interface consumed by the contracts service.
func (r *Renderer) Render(c *domain.Contract, format string) ([]byte, error) {
	text := Document(c)
	switch format {
	case FormatText, "":
		return []byte(text), nil
	case FormatHTML:
		return []byte(textToSafeHTML(text)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidArgument, format)
	}
}

// Document renders the normalized plain-text form. Two renders of the same
// document state produce identical bytes.
func Document(c *domain.Contract) string {
	var b strings.Builder
	b.WriteString(c.Title)
	b.WriteString("\n")
	b.WriteString("Status: ")
	b.WriteString(string(c.Status))
	b.WriteString("\n")
	if strings.TrimSpace(c.Description) != "" {
		b.WriteString("\n")
		b.WriteString(c.Description)
		b.WriteString("\n")
	}
	for i := range c.Clauses {
		clause := &c.Clauses[i]
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. %s\n", i+1, clause.ShortTitle)
		b.WriteString(clause.Versions[0].FullText)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Prepared by %s.\n", c.CreatorName)
	return normalizeText(b.String())
}

// normalizeText unifies line endings, trims trailing whitespace per line
// and guarantees exactly one trailing newline.
func normalizeText(in string) string {
	s := strings.ReplaceAll(in, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

// textToSafeHTML escapes the rendered text and wraps paragraphs, so clause
// bodies can never inject markup into a viewer.
func textToSafeHTML(text string) string {
	trimmed := strings.TrimSuffix(text, "\n")
	if strings.TrimSpace(trimmed) == "" {
		return "<p></p>\n"
	}
	paragraphs := strings.Split(trimmed, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		escaped := html.EscapeString(p)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		out = append(out, "<p>"+escaped+"</p>")
	}
	return strings.Join(out, "\n") + "\n"
}
