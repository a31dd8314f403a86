package resource

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Manifest is the on-disk description of the framework catalog
type Manifest struct {
	Frameworks []FrameworkEntry `json:"frameworks" yaml:"frameworks" toml:"frameworks"`
	Libraries  []LibraryEntry   `json:"libraries" yaml:"libraries" toml:"libraries"`
}

// FrameworkEntry is a named bundle of header resources. Language is the
// external-framework identifier renderers match against; it defaults to Name.
type FrameworkEntry struct {
	Name     string        `json:"name" yaml:"name" toml:"name"`
	Language string        `json:"language,omitempty" yaml:"language,omitempty" toml:"language,omitempty"`
	Headers  []HeaderEntry `json:"headers" yaml:"headers" toml:"headers"`
}

// HeaderEntry points at header content: a URI, a file relative to the
// manifest, or inline text
type HeaderEntry struct {
	URI       string `json:"uri,omitempty" yaml:"uri,omitempty" toml:"uri,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Content   string `json:"content,omitempty" yaml:"content,omitempty" toml:"content,omitempty"`
	MediaType string `json:"media_type,omitempty" yaml:"media_type,omitempty" toml:"media_type,omitempty"`
}

// LibraryEntry selects library files relative to the manifest
type LibraryEntry struct {
	Glob string `json:"glob" yaml:"glob" toml:"glob"`
}

// Catalog holds framework bundles and library files by name
type Catalog struct {
	frameworks map[string]Collection
	libraries  Collection
	names      []string
}

// ParseManifest decodes a manifest, choosing the format from the file extension
func ParseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	var err error

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".json":
		err = sonic.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", name, err)
	}
	return &m, nil
}

// LoadCatalog reads the manifest at path and resolves its files relative to
// the manifest's directory
func LoadCatalog(manifestPath string) (*Catalog, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(manifestPath, data)
	if err != nil {
		return nil, err
	}

	return NewCatalog(*m, os.DirFS(filepath.Dir(manifestPath)))
}

// NewCatalog builds a catalog from a decoded manifest. Files are read from fsys.
func NewCatalog(m Manifest, fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		frameworks: make(map[string]Collection, len(m.Frameworks)),
	}

	for _, fw := range m.Frameworks {
		if fw.Name == "" {
			return nil, fmt.Errorf("framework entry without name")
		}
		if _, dup := c.frameworks[fw.Name]; dup {
			return nil, fmt.Errorf("duplicate framework: %s", fw.Name)
		}

		language := fw.Language
		if language == "" {
			language = fw.Name
		}

		descs := make([]Descriptor, 0, len(fw.Headers))
		for i, h := range fw.Headers {
			d := Descriptor{
				Kind:      KindHeader,
				Name:      fw.Name,
				Framework: language,
				URI:       h.URI,
				Content:   h.Content,
				MediaType: h.MediaType,
				Order:     i,
			}
			if h.Path != "" {
				raw, err := fs.ReadFile(fsys, h.Path)
				if err != nil {
					return nil, fmt.Errorf("framework %s: %w", fw.Name, err)
				}
				text, err := DecodeText(raw)
				if err != nil {
					return nil, fmt.Errorf("framework %s: %s: %w", fw.Name, h.Path, err)
				}
				d.Content = text
				if d.MediaType == "" {
					d.MediaType = mediaTypeForPath(h.Path)
				}
			}
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("framework %s: %w", fw.Name, err)
			}
			descs = append(descs, d)
		}

		c.frameworks[fw.Name] = NewCollection(descs...)
		c.names = append(c.names, fw.Name)
	}
	sort.Strings(c.names)

	var libs []Descriptor
	for _, lib := range m.Libraries {
		matches, err := doublestar.Glob(fsys, lib.Glob)
		if err != nil {
			return nil, fmt.Errorf("library glob %q: %w", lib.Glob, err)
		}
		sort.Strings(matches)

		for _, match := range matches {
			raw, err := fs.ReadFile(fsys, match)
			if err != nil {
				return nil, fmt.Errorf("library %s: %w", match, err)
			}
			libs = append(libs, Descriptor{
				Kind:      KindLibrary,
				Name:      match,
				Content:   string(raw),
				MediaType: mimetype.Detect(raw).String(),
				Order:     len(libs),
			})
		}
	}
	c.libraries = NewCollection(libs...)

	return c, nil
}

// Framework returns the header collection registered under name
func (c *Catalog) Framework(name string) (Collection, bool) {
	col, ok := c.frameworks[name]
	return col, ok
}

// Resolve concatenates the named frameworks in the order given
func (c *Catalog) Resolve(names []string) (Collection, error) {
	cols := make([]Collection, 0, len(names))
	for _, name := range names {
		col, ok := c.frameworks[name]
		if !ok {
			return Collection{}, fmt.Errorf("%w: %s", ErrUnknownFramework, name)
		}
		cols = append(cols, col)
	}
	return Concat(cols...), nil
}

// Merge resolves names against c and appends the caller's own frameworks
// and libraries after the catalog's. A nil catalog knows no names.
func Merge(c *Catalog, names []string, frameworks, libraries Collection) (Collection, Collection, error) {
	if c == nil {
		if len(names) > 0 {
			return Collection{}, Collection{}, fmt.Errorf("%w: %s", ErrUnknownFramework, names[0])
		}
		return frameworks, libraries, nil
	}

	resolved, err := c.Resolve(names)
	if err != nil {
		return Collection{}, Collection{}, err
	}
	return Concat(resolved, frameworks), Concat(libraries, c.libraries), nil
}

// Libraries returns every library file in the catalog
func (c *Catalog) Libraries() Collection {
	return c.libraries
}

// Names returns the framework names, sorted
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// DecodeText converts raw file bytes to UTF-8, detecting legacy encodings
func DecodeText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return string(raw), nil
	}

	if strings.EqualFold(result.Charset, "UTF-8") || isASCII(raw) {
		return strings.TrimPrefix(string(raw), "\ufeff"), nil
	}

	enc, _ := charset.Lookup(result.Charset)
	if enc == nil {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", result.Charset, err)
	}
	return strings.TrimPrefix(string(decoded), "\ufeff"), nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

func mediaTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".css":
		return "text/css"
	case ".js", ".mjs":
		return "text/javascript"
	default:
		return ""
	}
}
