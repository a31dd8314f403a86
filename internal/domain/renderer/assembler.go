package renderer

import (
	"html"
	"strings"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/opt"
)

// Document is a complete executable markup document
type Document string

func (d Document) String() string { return string(d) }

// Parts are the fragments a renderer hands to the Assembler
type Parts struct {
	Header string
	Body   string
	Footer string
	// RawBody, when present, replaces Header, Body and Footer and becomes
	// the document's script region verbatim
	RawBody opt.Value[string]
}

// Assembler builds documents from fragments. It holds no mutable state.
type Assembler struct {
	preamble string
}

const closing = "\n</body>\n</html>\n"

// NewAssembler creates an assembler. An empty title omits the title element.
func NewAssembler(title string) *Assembler {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	if title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(title))
		b.WriteString("</title>\n")
	}
	b.WriteString("</head>\n<body>\n")
	return &Assembler{preamble: b.String()}
}

// Assemble concatenates preamble, header, body, footer and closing.
// Empty fragments are allowed and produce an empty-body document.
func (a *Assembler) Assemble(p Parts) Document {
	var b strings.Builder

	if raw, ok := p.RawBody.Get(); ok {
		b.Grow(len(a.preamble) + len(raw) + len(closing) + 17)
		b.WriteString(a.preamble)
		b.WriteString("<script>")
		b.WriteString(raw)
		b.WriteString("</script>")
		b.WriteString(closing)
		return Document(b.String())
	}

	b.Grow(len(a.preamble) + len(p.Header) + len(p.Body) + len(p.Footer) + len(closing))
	b.WriteString(a.preamble)
	b.WriteString(p.Header)
	b.WriteString(p.Body)
	b.WriteString(p.Footer)
	b.WriteString(closing)
	return Document(b.String())
}

// AssembleRaw is shorthand for Assemble with only RawBody set
func (a *Assembler) AssembleRaw(raw string) Document {
	return a.Assemble(Parts{RawBody: opt.Some(raw)})
}
