// Package parser extracts inline references from free-form Markdown content.
//
// It is a pure function over text: no knowledge of the entity graph, no
// scheme filtering. Consumers decide which reference schemes they care about.
package parser

import (
	"regexp"
	"strings"
)

var refRe = regexp.MustCompile(`\[([^\]]*)\]\(([^()\s]+)\)`)

// Ref is one reference occurrence in content, in document order.
type Ref struct {
	// Target is the raw reference target as written, scheme included.
	Target string
	// Label is the human-readable link text, possibly empty.
	Label string
	// Context is the nearest enclosing block-level chunk of content.
	Context string
}

// Parse returns every inline reference occurrence in content, in order.
// Block context is the paragraph (blank-line separated chunk) the reference
// appears in.
func Parse(content string) []Ref {
	if content == "" {
		return nil
	}

	var out []Ref
	for _, block := range splitBlocks(content) {
		matches := refRe.FindAllStringSubmatch(block, -1)
		for _, m := range matches {
			target := strings.TrimSpace(m[2])
			if target == "" {
				continue
			}
			out = append(out, Ref{
				Target:  target,
				Label:   strings.TrimSpace(m[1]),
				Context: block,
			})
		}
	}
	return out
}

// splitBlocks splits content into block-level chunks on blank lines.
func splitBlocks(content string) []string {
	raw := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	var out []string
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}
