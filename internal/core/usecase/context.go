package usecase

import (
	"fmt"
	"strings"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

// AssembleContext renders passages into the prompt context, one block
// per passage:
//
//	[marker] sourceDocument: text
//
// When the rendered size would exceed maxContextChars, whole passages
// are dropped from the low-ranked end; a passage's text is never
// truncated. Because only the tail is dropped and markers were
// assigned in ranked order, the surviving markers stay a contiguous
// 1..n run without renumbering.
func AssembleContext(passages []domain.FilteredPassage, maxContextChars int) domain.AssembledContext {
	retained := passages
	if maxContextChars > 0 {
		total := 0
		cut := 0
		for _, p := range retained {
			size := len(renderPassage(p))
			if total+size > maxContextChars {
				break
			}
			total += size
			cut++
		}
		retained = retained[:cut]
	}

	var b strings.Builder
	for _, p := range retained {
		b.WriteString(renderPassage(p))
	}

	out := make([]domain.FilteredPassage, len(retained))
	copy(out, retained)
	return domain.AssembledContext{
		Passages: out,
		Prompt:   b.String(),
	}
}

func renderPassage(p domain.FilteredPassage) string {
	return fmt.Sprintf("[%d] %s: %s\n\n", p.Marker, p.SourceDocument, p.Text)
}
