// Renders a block document to Markdown. Lossy and one-way, used only for
// the markdown export; never part of the persisted format.

package porter

import (
	"fmt"
	"strings"

	"github.com/potionhq/potion/internal/entity"
)

// ToMarkdown renders a block document as Markdown text.
func ToMarkdown(doc entity.BlockDocument) string {
	var sb strings.Builder
	ls := &listState{}
	for i := range doc.Blocks {
		sb.WriteString(blockToMarkdown(&doc.Blocks[i], ls, 0))
	}
	return sb.String()
}

// PageToMarkdown renders the page title as a top heading followed by its
// content.
func PageToMarkdown(p *entity.Page) string {
	return "# " + p.Title + "\n\n" + ToMarkdown(p.Content)
}

// listState tracks the numbered list counter across sibling blocks.
type listState struct {
	numberedCount int
	inNumbered    bool
}

func blockToMarkdown(b *entity.Block, ls *listState, depth int) string {
	indent := strings.Repeat("  ", depth)

	if b.Kind != entity.BlockNumberedItem {
		ls.inNumbered = false
		ls.numberedCount = 0
	}

	var out string
	switch b.Kind {
	case entity.BlockParagraph:
		text := spansToMarkdown(b.Text)
		if text == "" {
			out = "\n"
		} else {
			out = indent + text + "\n\n"
		}

	case entity.BlockHeading:
		level := b.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		out = strings.Repeat("#", level) + " " + spansToMarkdown(b.Text) + "\n\n"

	case entity.BlockListItem:
		out = indent + "- " + spansToMarkdown(b.Text) + "\n"

	case entity.BlockNumberedItem:
		if !ls.inNumbered {
			ls.inNumbered = true
			ls.numberedCount = 0
		}
		ls.numberedCount++
		out = fmt.Sprintf("%s%d. %s\n", indent, ls.numberedCount, spansToMarkdown(b.Text))

	case entity.BlockChecklistItem:
		checkbox := "[ ]"
		if b.Checked {
			checkbox = "[x]"
		}
		out = indent + "- " + checkbox + " " + spansToMarkdown(b.Text) + "\n"

	case entity.BlockCode:
		out = "```" + b.Language + "\n" + entity.PlainText(b.Text) + "\n```\n\n"

	case entity.BlockImage:
		alt := b.Alt
		if alt == "" {
			alt = "image"
		}
		out = fmt.Sprintf("![%s](%s)\n\n", alt, b.URL)

	case entity.BlockDivider:
		out = "---\n\n"

	case entity.BlockQuote:
		lines := strings.Split(spansToMarkdown(b.Text), "\n")
		quoted := make([]string, len(lines))
		for i, line := range lines {
			quoted[i] = indent + "> " + line
		}
		out = strings.Join(quoted, "\n") + "\n\n"

	case entity.BlockTable:
		// Rows are child blocks, rendered below.

	case entity.BlockTableRow:
		cells := make([]string, len(b.Cells))
		for i, cell := range b.Cells {
			cells[i] = spansToMarkdown(cell)
		}
		out = indent + "| " + strings.Join(cells, " | ") + " |\n"
	}

	childDepth := depth
	if b.Kind != entity.BlockTable {
		childDepth++
	}
	childState := &listState{}
	for i := range b.Children {
		out += blockToMarkdown(&b.Children[i], childState, childDepth)
	}
	return out
}

// spansToMarkdown converts styled spans to inline markdown.
func spansToMarkdown(spans []entity.Span) string {
	var sb strings.Builder
	for _, s := range spans {
		text := s.Text
		if s.Code {
			text = "`" + text + "`"
		}
		if s.Bold {
			text = "**" + text + "**"
		}
		if s.Italic {
			text = "*" + text + "*"
		}
		if s.Strikethrough {
			text = "~~" + text + "~~"
		}
		if s.Href != "" {
			text = "[" + text + "](" + s.Href + ")"
		}
		sb.WriteString(text)
	}
	return sb.String()
}
