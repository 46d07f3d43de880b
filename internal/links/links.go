// Package links adapts the content parser into structured entity links.
// Only references carrying the internal user:// scheme become links; every
// other reference form is ignored.
package links

import (
	"strings"

	"github.com/starford/othala/internal/entity"
	"github.com/starford/othala/internal/parser"
)

// Scheme is the internal-reference marker on link targets.
const Scheme = "user://"

// Extract parses the entity's content and returns its outgoing links, one
// per distinct target, first occurrence wins for label and context.
// Entities without content yield nil.
func Extract(e *entity.Entity) []entity.Link {
	content := e.Content()
	if content == "" {
		return nil
	}

	refs := parser.Parse(content)
	seen := make(map[string]struct{}, len(refs))
	var out []entity.Link
	for _, r := range refs {
		if !strings.HasPrefix(r.Target, Scheme) {
			continue
		}
		target := strings.TrimPrefix(r.Target, Scheme)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, entity.Link{
			Name:    r.Label,
			Path:    r.Target,
			Source:  e,
			Entity:  target,
			Context: r.Context,
		})
	}
	return out
}
