package docx

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	paragraphRe   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRe        = regexp.MustCompile(`(?s)(<w:t(?:\s[^>]*)?>)(.*?)(</w:t>)`)
	tagRe         = regexp.MustCompile(`\{([#/^%]?)([A-Za-z_][A-Za-z0-9_]*)\}`)
	sectionOnlyRe = regexp.MustCompile(`^\{[#/^][A-Za-z_][A-Za-z0-9_]*\}$`)
)

const preserveOpen = `<w:t xml:space="preserve">`

// TemplateError reports a malformed tag or a binding failure.
type TemplateError struct {
	Part   string
	Tag    string
	Reason string
}

func (e *TemplateError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("docx: %s: %s", e.Part, e.Reason)
	}
	return fmt.Sprintf("docx: %s: %s: %s", e.Part, e.Tag, e.Reason)
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// normalize merges tags split across runs so every tag sits inside a single
// <w:t>, and hoists paragraphs holding only a section tag out to the bare
// tag.
func normalize(part, xml string) (string, error) {
	var firstErr error
	out := paragraphRe.ReplaceAllStringFunc(xml, func(p string) string {
		if firstErr != nil {
			return p
		}
		normalized, err := normalizeParagraph(part, p)
		if err != nil {
			firstErr = err
			return p
		}
		return normalized
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func normalizeParagraph(part, p string) (string, error) {
	matches := textRe.FindAllStringSubmatchIndex(p, -1)
	if len(matches) == 0 {
		return p, nil
	}
	segments := make([]string, len(matches))
	var joined strings.Builder
	for i, m := range matches {
		segments[i] = html.UnescapeString(p[m[4]:m[5]])
		joined.WriteString(segments[i])
	}
	text := joined.String()
	if !strings.ContainsAny(text, "{}") {
		return p, nil
	}
	tags := tagRe.FindAllStringIndex(text, -1)
	if err := checkDelimiters(part, text, tags); err != nil {
		return "", err
	}
	if sectionOnlyRe.MatchString(strings.TrimSpace(text)) {
		return strings.TrimSpace(text), nil
	}

	// owner[i] is the segment that byte i of text belongs to.
	owner := make([]int, 0, len(text))
	for i, seg := range segments {
		for range len(seg) {
			owner = append(owner, i)
		}
	}
	for _, t := range tags {
		for i := t[0]; i < t[1]; i++ {
			owner[i] = owner[t[0]]
		}
	}
	rebuilt := make([]strings.Builder, len(segments))
	for i := 0; i < len(text); i++ {
		rebuilt[owner[i]].WriteByte(text[i])
	}

	var b strings.Builder
	last := 0
	for i, m := range matches {
		b.WriteString(p[last:m[0]])
		b.WriteString(preserveOpen)
		b.WriteString(escapeText(rebuilt[i].String()))
		b.WriteString("</w:t>")
		last = m[1]
	}
	b.WriteString(p[last:])
	return b.String(), nil
}

// checkDelimiters rejects braces that are not part of a well-formed tag.
func checkDelimiters(part, text string, tags [][]int) error {
	covered := make([]bool, len(text))
	for _, t := range tags {
		for i := t[0]; i < t[1]; i++ {
			covered[i] = true
		}
	}
	for i := 0; i < len(text); i++ {
		if (text[i] == '{' || text[i] == '}') && !covered[i] {
			end := i + 24
			if end > len(text) {
				end = len(text)
			}
			return &TemplateError{Part: part, Tag: text[i:end], Reason: "malformed tag"}
		}
	}
	return nil
}

type nodeKind int

const (
	nodeRaw nodeKind = iota
	nodeVar
	nodeImage
	nodeSection
)

type node struct {
	kind     nodeKind
	raw      string
	name     string
	inverted bool
	children []*node
}

// parse builds the tag tree of a normalized part.
func parse(part, xml string) ([]*node, error) {
	root := &node{kind: nodeSection}
	stack := []*node{root}
	last := 0
	for _, m := range tagRe.FindAllStringSubmatchIndex(xml, -1) {
		top := stack[len(stack)-1]
		if m[0] > last {
			top.children = append(top.children, &node{kind: nodeRaw, raw: xml[last:m[0]]})
		}
		last = m[1]
		prefix, name := xml[m[2]:m[3]], xml[m[4]:m[5]]
		switch prefix {
		case "":
			top.children = append(top.children, &node{kind: nodeVar, name: name})
		case "%":
			top.children = append(top.children, &node{kind: nodeImage, name: name})
		case "#", "^":
			section := &node{kind: nodeSection, name: name, inverted: prefix == "^"}
			top.children = append(top.children, section)
			stack = append(stack, section)
		case "/":
			if len(stack) == 1 || top.name != name {
				return nil, &TemplateError{Part: part, Tag: "{/" + name + "}", Reason: "unexpected closing tag"}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 1 {
		open := stack[len(stack)-1]
		return nil, &TemplateError{Part: part, Tag: "{#" + open.name + "}", Reason: "unclosed section"}
	}
	if last < len(xml) {
		root.children = append(root.children, &node{kind: nodeRaw, raw: xml[last:]})
	}
	return root.children, nil
}
