// Defines the rich-text block document stored on a page. The core treats it
// as an opaque, versioned payload: it is stored, copied and flattened to
// text, never edited here.

package entity

import "strings"

// BlockFormatVersion is the current version of the block document format.
const BlockFormatVersion = 1

// BlockDocument is the versioned rich-text payload of a page.
type BlockDocument struct {
	FormatVersion int     `json:"formatVersion" jsonschema:"description=Block document format version"`
	Blocks        []Block `json:"blocks" jsonschema:"description=Ordered top-level blocks"`
}

// EmptyDocument returns a new document with no blocks at the current version.
func EmptyDocument() BlockDocument {
	return BlockDocument{FormatVersion: BlockFormatVersion, Blocks: []Block{}}
}

// Clone returns a deep copy of the document.
func (d BlockDocument) Clone() BlockDocument {
	c := d
	c.Blocks = cloneBlocks(d.Blocks)
	return c
}

// PlainText flattens the document to unstyled text, one line per block.
// Used for content search and nothing else.
func (d BlockDocument) PlainText() string {
	var sb strings.Builder
	for i := range d.Blocks {
		d.Blocks[i].appendPlainText(&sb)
	}
	return sb.String()
}

// BlockKind identifies the variant of a block.
type BlockKind string

const (
	// BlockParagraph is a plain text paragraph.
	BlockParagraph BlockKind = "paragraph"
	// BlockHeading is a heading with a level.
	BlockHeading BlockKind = "heading"
	// BlockListItem is a bulleted list item.
	BlockListItem BlockKind = "listItem"
	// BlockNumberedItem is a numbered list item.
	BlockNumberedItem BlockKind = "numberedItem"
	// BlockChecklistItem is a to-do item with a checked state.
	BlockChecklistItem BlockKind = "checklistItem"
	// BlockCode is a fenced code block.
	BlockCode BlockKind = "code"
	// BlockImage is an image reference.
	BlockImage BlockKind = "image"
	// BlockDivider is a horizontal rule.
	BlockDivider BlockKind = "divider"
	// BlockQuote is a block quote.
	BlockQuote BlockKind = "quote"
	// BlockTable is a table; its rows are child blocks of kind tableRow.
	BlockTable BlockKind = "table"
	// BlockTableRow is a single table row carrying cells.
	BlockTableRow BlockKind = "tableRow"
)

// Block is a tagged variant over Kind. Fields are populated per kind; the
// zero value of unused fields is omitted on the wire.
type Block struct {
	Kind     BlockKind `json:"kind" jsonschema:"description=Block variant"`
	Text     []Span    `json:"text,omitempty" jsonschema:"description=Inline styled content"`
	Level    int       `json:"level,omitempty" jsonschema:"description=Heading level (1-6)"`
	Checked  bool      `json:"checked,omitempty" jsonschema:"description=Checklist item state"`
	Language string    `json:"language,omitempty" jsonschema:"description=Code block language"`
	URL      string    `json:"url,omitempty" jsonschema:"description=Image source"`
	Alt      string    `json:"alt,omitempty" jsonschema:"description=Image alt text"`
	Cells    [][]Span  `json:"cells,omitempty" jsonschema:"description=Table row cells"`
	Children []Block   `json:"children,omitempty" jsonschema:"description=Nested child blocks"`
}

// Span is a run of inline text with optional styling and link.
type Span struct {
	Text          string `json:"text"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Href          string `json:"href,omitempty"`
}

// PlainText returns the unstyled text of the spans.
func PlainText(spans []Span) string {
	var sb strings.Builder
	for i := range spans {
		sb.WriteString(spans[i].Text)
	}
	return sb.String()
}

func (b *Block) appendPlainText(sb *strings.Builder) {
	if text := PlainText(b.Text); text != "" {
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	for i := range b.Cells {
		if text := PlainText(b.Cells[i]); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
	}
	for i := range b.Children {
		b.Children[i].appendPlainText(sb)
	}
}

func cloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i := range blocks {
		out[i] = blocks[i]
		out[i].Text = append([]Span(nil), blocks[i].Text...)
		if blocks[i].Cells != nil {
			out[i].Cells = make([][]Span, len(blocks[i].Cells))
			for j := range blocks[i].Cells {
				out[i].Cells[j] = append([]Span(nil), blocks[i].Cells[j]...)
			}
		}
		out[i].Children = cloneBlocks(blocks[i].Children)
	}
	return out
}
