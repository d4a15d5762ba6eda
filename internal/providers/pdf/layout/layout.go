// Package layout plans where each line of a survey report goes. It knows
// nothing about PDF output; the renderer turns a Document into pages.
package layout

// A4 geometry and spacing, in mm measured from the top edge.
const (
	PageHeight   = 297.0
	TopMargin    = 20.0
	BottomMargin = 20.0
	// BreakLimit is the lowest position a new line may start at.
	BreakLimit = PageHeight - BottomMargin

	TitleHeight     = 7.0
	TimestampHeight = 13.0
	FieldHeight     = 9.0
	HeadingHeight   = 6.0
	LineHeight      = 6.0
	FooterY         = PageHeight - 15.0
	FooterHeight    = 5.0

	WrapWidth   = 80
	Placeholder = "-"
)

type Kind int

const (
	KindTitle Kind = iota
	KindTimestamp
	KindField
	KindHeading
	KindLine
	KindFooter
)

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindTimestamp:
		return "timestamp"
	case KindField:
		return "field"
	case KindHeading:
		return "heading"
	case KindLine:
		return "line"
	case KindFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// Block is one placed line of the report.
type Block struct {
	Kind   Kind
	Y      float64
	Height float64
	Label  string
	Text   string
}

type Page struct {
	Blocks []Block
}

type Document struct {
	Pages []Page
}

// Lines returns the text of every block of the given kind, in order.
func (d Document) Lines(kind Kind) []string {
	var out []string
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.Kind == kind {
				out = append(out, b.Text)
			}
		}
	}
	return out
}

type Field struct {
	Label string
	Value string
}

// Content is everything printed on a report.
type Content struct {
	Title             string
	Timestamp         string
	Fields            []Field
	ObservationsLabel string
	Observations      string
	Footer            string
}

// Build lays out content top-down. Observation lines and the footer each get
// a page-break check before they are placed.
func Build(content Content) Document {
	cur := NewCursor(TopMargin, BreakLimit)
	doc := Document{Pages: []Page{{}}}

	place := func(kind Kind, height float64, label, text string) {
		for cur.Page() >= len(doc.Pages) {
			doc.Pages = append(doc.Pages, Page{})
		}
		p := &doc.Pages[cur.Page()]
		p.Blocks = append(p.Blocks, Block{Kind: kind, Y: cur.Y(), Height: height, Label: label, Text: text})
		cur.Advance(height)
	}

	place(KindTitle, TitleHeight, "", content.Title)
	place(KindTimestamp, TimestampHeight, "", content.Timestamp)

	for _, f := range content.Fields {
		value := f.Value
		if value == "" {
			value = Placeholder
		}
		place(KindField, FieldHeight, f.Label, value)
	}

	place(KindHeading, HeadingHeight, "", content.ObservationsLabel)

	lines := Wrap(content.Observations, WrapWidth)
	if len(lines) == 0 {
		lines = []string{Placeholder}
	}
	for _, line := range lines {
		cur.BreakIfNeeded()
		place(KindLine, LineHeight, "", line)
	}

	cur.BreakIfNeeded()
	if cur.Y() < FooterY {
		cur.Advance(FooterY - cur.Y())
	}
	place(KindFooter, FooterHeight, "", content.Footer)

	return doc
}
