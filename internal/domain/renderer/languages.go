package renderer

import (
	"fmt"

	"github.com/GriffinCanCode/RunnerOS/backend/internal/domain/resource"
	"github.com/GriffinCanCode/RunnerOS/backend/internal/shared/opt"
)

// Language identifies a source language
type Language string

const (
	JavaScript   Language = "javascript"
	CoffeeScript Language = "coffeescript"
	Python       Language = "python"
	HTML         Language = "html"
)

// Framework returns the external-framework identifier whose header
// resources the language's renderer injects
func (l Language) Framework() string {
	return string(l)
}

// Builtins returns the renderers for every supported language
func Builtins() map[Language]Renderer {
	return map[Language]Renderer{
		JavaScript:   RendererFunc(renderJavaScript),
		CoffeeScript: typedScript(CoffeeScript, "text/coffeescript"),
		Python:       typedScript(Python, "text/python"),
		HTML:         RendererFunc(renderHTML),
	}
}

// RegisterBuiltins registers every supported language
func RegisterBuiltins(r *Registry) error {
	builtins := Builtins()
	for _, lang := range []Language{JavaScript, CoffeeScript, Python, HTML} {
		if err := r.Register(lang, builtins[lang]); err != nil {
			return fmt.Errorf("failed to register %s renderer: %w", lang, err)
		}
	}
	return nil
}

// renderJavaScript needs no framework header: the default slot is the
// document's script region.
func renderJavaScript(in Input, a *Assembler) Document {
	return a.Assemble(Parts{RawBody: opt.Some(in.Content.Default())})
}

// typedScript renders languages that a framework header compiles in the
// sandbox from a typed script block.
func typedScript(lang Language, scriptType string) Renderer {
	return RendererFunc(func(in Input, a *Assembler) Document {
		header := HeaderFragment(in.Frameworks.Headers(lang.Framework()))
		body := "\n<script type=\"" + scriptType + "\">\n" + in.Content.Default() + "\n</script>\n"
		return a.Assemble(Parts{Header: header, Body: body})
	})
}

// renderHTML embeds the default slot as markup with library placeholders
// resolved; the css and javascript slots follow as the footer.
func renderHTML(in Input, a *Assembler) Document {
	header := HeaderFragment(in.Frameworks.Headers(HTML.Framework()))
	body := InlineLibraries(in.Content.Default(), in.Libraries)

	var footer string
	if css := in.Content.Get(resource.SlotCSS); css != "" {
		footer += "\n<style>\n" + css + "\n</style>"
	}
	if js := in.Content.Get(resource.SlotJavaScript); js != "" {
		footer += "\n<script>\n" + js + "\n</script>"
	}

	return a.Assemble(Parts{Header: header, Body: body, Footer: footer})
}
