package docx

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PageBreak inside a text value starts a new page in the rendered document.
const PageBreak = "\f"

var headerFooterRe = regexp.MustCompile(`^word/(header|footer)\d*\.xml$`)

// Renderer binds field maps into templates. It is safe for concurrent use.
type Renderer struct {
	sizes SizeFunc
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSizes overrides the image size table.
func WithSizes(fn SizeFunc) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.sizes = fn
		}
	}
}

// NewRenderer constructs a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{sizes: DefaultSizes}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render binds data into tpl and returns the serialized package. Any
// binding failure aborts rendering; no partial document is produced.
func (r *Renderer) Render(tpl *Template, data map[string]any) ([]byte, error) {
	if tpl == nil {
		return nil, &TemplateError{Part: documentPart, Reason: "template not loaded"}
	}
	var media *mediaSet
	if containsImage(data) {
		media = newMediaSet(r.sizes)
	}

	parts := make(map[string][]byte, 4)
	for _, e := range tpl.entries {
		if e.name != documentPart && !headerFooterRe.MatchString(e.name) {
			continue
		}
		rendered, err := r.renderPart(e.name, string(e.data), data, media)
		if err != nil {
			return nil, err
		}
		parts[e.name] = []byte(rendered)
	}

	if media != nil && len(media.items) > 0 {
		if err := media.patch(tpl, parts); err != nil {
			return nil, err
		}
	}
	return write(tpl, parts, media)
}

func (r *Renderer) renderPart(part, xml string, data map[string]any, media *mediaSet) (string, error) {
	normalized, err := normalize(part, xml)
	if err != nil {
		return "", err
	}
	nodes, err := parse(part, normalized)
	if err != nil {
		return "", err
	}
	ctx := &evalContext{part: part, media: media}
	if part != documentPart {
		ctx.media = nil
		ctx.imagesForbidden = true
	}
	var b strings.Builder
	if err := ctx.render(&b, nodes, []map[string]any{data}); err != nil {
		return "", err
	}
	return b.String(), nil
}

type evalContext struct {
	part            string
	media           *mediaSet
	imagesForbidden bool
}

func lookup(scopes []map[string]any, name string) (any, bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if v, ok := scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (c *evalContext) render(b *strings.Builder, nodes []*node, scopes []map[string]any) error {
	for _, n := range nodes {
		switch n.kind {
		case nodeRaw:
			b.WriteString(n.raw)
		case nodeVar:
			v, ok := lookup(scopes, n.name)
			if !ok {
				return &TemplateError{Part: c.part, Tag: "{" + n.name + "}", Reason: "undefined field"}
			}
			if _, isImage := v.(Image); isImage {
				return &TemplateError{Part: c.part, Tag: "{" + n.name + "}", Reason: "image field used as text"}
			}
			b.WriteString(textValue(v))
		case nodeImage:
			if err := c.renderImage(b, n.name, scopes); err != nil {
				return err
			}
		case nodeSection:
			if err := c.renderSection(b, n, scopes); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *evalContext) renderImage(b *strings.Builder, name string, scopes []map[string]any) error {
	tag := "{%" + name + "}"
	if c.imagesForbidden {
		return &TemplateError{Part: c.part, Tag: tag, Reason: "images are only supported in the document body"}
	}
	v, ok := lookup(scopes, name)
	if !ok {
		return &TemplateError{Part: c.part, Tag: tag, Reason: "undefined field"}
	}
	img, isImage := v.(Image)
	if !isImage || c.media == nil {
		return &TemplateError{Part: c.part, Tag: tag, Reason: "field is not an image"}
	}
	if len(img.Data) == 0 {
		return &TemplateError{Part: c.part, Tag: tag, Reason: "empty image"}
	}
	b.WriteString("</w:t>")
	b.WriteString(c.media.add(name, img))
	b.WriteString(preserveOpen)
	return nil
}

func (c *evalContext) renderSection(b *strings.Builder, n *node, scopes []map[string]any) error {
	v, _ := lookup(scopes, n.name)
	if n.inverted {
		if truthy(v) {
			return nil
		}
		return c.render(b, n.children, scopes)
	}
	switch val := v.(type) {
	case []map[string]any:
		for _, item := range val {
			if err := c.render(b, n.children, append(scopes, item)); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, item := range val {
			scope, ok := item.(map[string]any)
			if !ok {
				scope = map[string]any{".": item}
			}
			if err := c.render(b, n.children, append(scopes, scope)); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		return c.render(b, n.children, append(scopes, val))
	}
	if !truthy(v) {
		return nil
	}
	return c.render(b, n.children, scopes)
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// textValue renders a scalar as run text. Line breaks, tabs and page breaks
// become the matching WordprocessingML elements.
func textValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = ""
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	case bool:
		s = strconv.FormatBool(val)
	default:
		s = fmt.Sprint(val)
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(xmlRune, s)
	s = escapeText(s)
	s = strings.ReplaceAll(s, "\n", `</w:t><w:br/>`+preserveOpen)
	s = strings.ReplaceAll(s, "\t", `</w:t><w:tab/>`+preserveOpen)
	s = strings.ReplaceAll(s, PageBreak, `</w:t><w:br w:type="page"/>`+preserveOpen)
	return s
}

// xmlRune keeps runes that XML 1.0 allows in character data. A vertical tab
// (soft line break in pasted office text) becomes a newline; PageBreak is
// kept for textValue to expand.
func xmlRune(r rune) rune {
	switch {
	case r == '\v':
		return '\n'
	case r == '\t', r == '\n', r == '\r', string(r) == PageBreak:
		return r
	case r < 0x20, r == 0xFFFE, r == 0xFFFF:
		return -1
	case r >= 0xD800 && r <= 0xDFFF:
		return -1
	default:
		return r
	}
}

func containsImage(v any) bool {
	switch val := v.(type) {
	case Image:
		return len(val.Data) > 0
	case map[string]any:
		for _, item := range val {
			if containsImage(item) {
				return true
			}
		}
	case []map[string]any:
		for _, item := range val {
			if containsImage(item) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if containsImage(item) {
				return true
			}
		}
	}
	return false
}

func write(tpl *Template, parts map[string][]byte, media *mediaSet) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	put := func(name string, hdr *zip.FileHeader, data []byte) error {
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("docx: write %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("docx: write %s: %w", name, err)
		}
		return nil
	}
	written := make(map[string]bool, len(tpl.entries))
	for _, e := range tpl.entries {
		data := e.data
		if replaced, ok := parts[e.name]; ok {
			data = replaced
		}
		if err := put(e.name, &zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: e.modified}, data); err != nil {
			return nil, err
		}
		written[e.name] = true
	}
	// Parts created while rendering, such as a missing relationships file.
	extra := make([]string, 0)
	for name := range parts {
		if !written[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		if err := put(name, &zip.FileHeader{Name: name, Method: zip.Deflate}, parts[name]); err != nil {
			return nil, err
		}
	}
	if media != nil {
		for _, item := range media.items {
			if err := put(item.path, &zip.FileHeader{Name: item.path, Method: zip.Deflate}, item.data); err != nil {
				return nil, err
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: finalize: %w", err)
	}
	return buf.Bytes(), nil
}
