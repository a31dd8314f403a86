/*
Package renderer turns editor content and resource collections into a single
executable document.

# Overview

Rendering has two stages:

 1. A language renderer resolves the framework header for its language and
    wraps the default editor slot in the script markup the language needs.
 2. The Assembler concatenates preamble, header, body, footer and closing
    into the final Document.

Pass-through languages skip the header entirely and hand the Assembler a raw
body, which becomes the document's only script region.

# Registry

Renderers are registered per Language at process start and looked up by tag
at render time. Rendering an unregistered language returns ErrNoRenderer and
is logged; it never yields an empty document.

	reg := renderer.NewRegistry(renderer.NewAssembler(""), logger)
	if err := renderer.RegisterBuiltins(reg); err != nil {
		return err
	}
	doc, err := reg.Render(renderer.JavaScript, renderer.Input{
		Content: resource.EditorContent{resource.SlotDefault: "alert(1)"},
	})

# Inspection

Document.Scripts extracts script regions in document order, Inspect
summarizes a document and Preview produces a script-free sanitized copy for
thumbnails.
*/
package renderer
