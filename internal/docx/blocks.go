// Package docx renders a flat list of block descriptors into a
// WordprocessingML (.docx) package and reads the text back out of one.
package docx

import "time"

// MimeType is the content type of a .docx package.
const MimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extension is the file extension, without the dot.
const Extension = "docx"

// Kind selects how a block is rendered.
type Kind int

const (
	// KindText is a paragraph holding a single run of text.
	KindText Kind = iota
	// KindSeparator is an empty paragraph drawn as a bottom border rule.
	KindSeparator
)

// Style holds run and paragraph formatting for a block.
// Spacing values are in twentieths of a point (twips).
type Style struct {
	Bold        bool
	Italic      bool
	SizePt      float64
	Color       string
	SpaceBefore int
	SpaceAfter  int
}

// Block is one paragraph of the document.
type Block struct {
	Kind  Kind
	Text  string
	Style Style
}

// Text returns a text block.
func Text(text string, style Style) Block {
	return Block{Kind: KindText, Text: text, Style: style}
}

// Separator returns a horizontal rule with the given spacing around it.
func Separator(spaceBefore, spaceAfter int) Block {
	return Block{
		Kind:  KindSeparator,
		Style: Style{SpaceBefore: spaceBefore, SpaceAfter: spaceAfter},
	}
}

// Properties are written to docProps/core.xml.
type Properties struct {
	Title   string
	Subject string
	Creator string
	Created time.Time
}
