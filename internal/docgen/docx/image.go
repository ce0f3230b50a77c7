package docx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	emuPerPixel   = 9525
	relsPart      = "word/_rels/document.xml.rels"
	contentTypes  = "[Content_Types].xml"
	imageRelType  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsWP          = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsR           = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

var (
	relIDRe      = regexp.MustCompile(`Id="rId(\d+)"`)
	docRootRe    = regexp.MustCompile(`<w:document\b[^>]*>`)
	defaultExtRe = regexp.MustCompile(`(?i)<Default\s+Extension="([^"]+)"`)
	docPrIDRe    = regexp.MustCompile(`<wp:docPr\s+id="(\d+)"`)
)

// Image is an embeddable picture bound to a {%name} tag.
type Image struct {
	Data []byte
	Name string
}

// SizeFunc returns the display size in pixels for the image bound to tag.
type SizeFunc func(tag string) (width, height int)

// DefaultSizes renders drawings as portrait pages and notes pictures at a
// smaller size.
func DefaultSizes(tag string) (int, int) {
	if strings.Contains(strings.ToLower(tag), "notes") {
		return 300, 400
	}
	return 550, 750
}

type mediaItem struct {
	relID       string
	path        string
	ext         string
	contentType string
	data        []byte
}

// mediaSet collects images embedded while rendering the document body.
type mediaSet struct {
	sizes SizeFunc
	items []mediaItem
}

func newMediaSet(sizes SizeFunc) *mediaSet {
	return &mediaSet{sizes: sizes}
}

// add registers img and returns the inline drawing markup referencing it.
// Relationship ids are provisional until patch renumbers them.
func (m *mediaSet) add(tag string, img Image) string {
	mt := mimetype.Detect(img.Data)
	ext := strings.TrimPrefix(mt.Extension(), ".")
	if ext == "" || ext == "jpeg" {
		ext = "jpg"
	}
	contentType := mt.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	index := len(m.items) + 1
	item := mediaItem{
		relID:       fmt.Sprintf("rIdQdImg%d", index),
		path:        fmt.Sprintf("word/media/quotedoc_image%d.%s", index, ext),
		ext:         ext,
		contentType: contentType,
		data:        img.Data,
	}
	m.items = append(m.items, item)

	w, h := m.sizes(tag)
	cx, cy := w*emuPerPixel, h*emuPerPixel
	name := img.Name
	if name == "" {
		name = fmt.Sprintf("image%d", index)
	}
	name = escapeAttr(name)
	return fmt.Sprintf(`<w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%s" name="%s"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="0" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`,
		cx, cy, docPrPlaceholder(index), name, name, item.relID, cx, cy)
}

func docPrPlaceholder(index int) string {
	return fmt.Sprintf("QD_DOCPR_%d", index)
}

// patch assigns final relationship and drawing ids, and registers the media
// in the relationships and content types parts.
func (m *mediaSet) patch(tpl *Template, parts map[string][]byte) error {
	doc := string(parts[documentPart])

	rels, hasRels := tpl.part(relsPart)
	if !hasRels {
		rels = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="` + relsNamespace + `"></Relationships>`)
	}
	relsXML := string(rels)
	maxRel := maxID(relIDRe, relsXML)
	maxDocPr := maxID(docPrIDRe, doc)

	var relsEntries strings.Builder
	for i := range m.items {
		item := &m.items[i]
		finalID := fmt.Sprintf("rId%d", maxRel+i+1)
		doc = strings.Replace(doc, `r:embed="`+item.relID+`"`, `r:embed="`+finalID+`"`, 1)
		doc = strings.Replace(doc, `id="`+docPrPlaceholder(i+1)+`"`, fmt.Sprintf(`id="%d"`, maxDocPr+i+1), 1)
		item.relID = finalID
		fmt.Fprintf(&relsEntries, `<Relationship Id="%s" Type="%s" Target="%s"/>`,
			finalID, imageRelType, strings.TrimPrefix(item.path, "word/"))
	}
	end := strings.LastIndex(relsXML, "</Relationships>")
	if end < 0 {
		return &TemplateError{Part: relsPart, Reason: "malformed relationships part"}
	}
	relsXML = relsXML[:end] + relsEntries.String() + relsXML[end:]
	parts[relsPart] = []byte(relsXML)

	doc = ensureNamespaces(doc)
	parts[documentPart] = []byte(doc)

	types, ok := tpl.part(contentTypes)
	if !ok {
		return &TemplateError{Part: contentTypes, Reason: "missing content types part"}
	}
	patched, err := m.registerContentTypes(string(types))
	if err != nil {
		return err
	}
	parts[contentTypes] = []byte(patched)
	return nil
}

func (m *mediaSet) registerContentTypes(types string) (string, error) {
	known := make(map[string]bool)
	for _, match := range defaultExtRe.FindAllStringSubmatch(types, -1) {
		known[strings.ToLower(match[1])] = true
	}
	var defaults strings.Builder
	for _, item := range m.items {
		if known[item.ext] {
			continue
		}
		known[item.ext] = true
		fmt.Fprintf(&defaults, `<Default Extension="%s" ContentType="%s"/>`, item.ext, item.contentType)
	}
	end := strings.LastIndex(types, "</Types>")
	if end < 0 {
		return "", &TemplateError{Part: contentTypes, Reason: "malformed content types part"}
	}
	return types[:end] + defaults.String() + types[end:], nil
}

// ensureNamespaces declares the drawing prefixes on the document root when
// the template never used images.
func ensureNamespaces(doc string) string {
	root := docRootRe.FindStringIndex(doc)
	if root == nil {
		return doc
	}
	open := doc[root[0]:root[1]]
	patched := open
	if !strings.Contains(open, "xmlns:wp=") {
		patched = strings.Replace(patched, "<w:document", `<w:document xmlns:wp="`+nsWP+`"`, 1)
	}
	if !strings.Contains(open, "xmlns:r=") {
		patched = strings.Replace(patched, "<w:document", `<w:document xmlns:r="`+nsR+`"`, 1)
	}
	return doc[:root[0]] + patched + doc[root[1]:]
}

func maxID(re *regexp.Regexp, s string) int {
	highest := 0
	for _, match := range re.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeText(s), `"`, "&quot;")
}

func (t *Template) part(name string) ([]byte, bool) {
	for _, e := range t.entries {
		if e.name == name {
			return e.data, true
		}
	}
	return nil, false
}
