package renderer

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
)

// HeaderFragment renders header descriptors as script or style tags,
// one per line, in the order given
func HeaderFragment(descs []resource.Descriptor) string {
	if len(descs) == 0 {
		return ""
	}

	tags := make([]string, 0, len(descs))
	for _, d := range descs {
		tags = append(tags, headerTag(d))
	}
	return strings.Join(tags, "\n")
}

func headerTag(d resource.Descriptor) string {
	css := d.MediaType == "text/css"

	switch {
	case css && d.Inline():
		return "<style>\n" + d.Content + "\n</style>"
	case css:
		return `<link rel="stylesheet" href="` + html.EscapeString(d.URI) + `">`
	case d.Inline():
		return "<script>\n" + d.Content + "\n</script>"
	default:
		return `<script src="` + html.EscapeString(d.URI) + `"></script>`
	}
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// InlineLibraries replaces {{ name }} placeholders with a reference to the
// named library: its URI, or a base64 data URI for inline content.
// Placeholders naming unknown libraries are left untouched.
func InlineLibraries(markup string, libraries resource.Collection) string {
	if libraries.Len() == 0 || !strings.Contains(markup, "{{") {
		return markup
	}

	return placeholderPattern.ReplaceAllStringFunc(markup, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		lib, ok := libraries.Library(name)
		if !ok {
			return match
		}
		return LibraryURL(lib)
	})
}

// LibraryURL returns the URL a document uses to reference a library
func LibraryURL(lib resource.Descriptor) string {
	if !lib.Inline() {
		return lib.URI
	}

	mediaType := lib.MediaType
	if mediaType == "" {
		mediaType = mimetype.Detect([]byte(lib.Content)).String()
	}
	mediaType = strings.ReplaceAll(mediaType, " ", "")
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString([]byte(lib.Content))
}
