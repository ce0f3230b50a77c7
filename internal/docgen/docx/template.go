// Package docx binds a flat field map into a Word (.docx) template.
//
// Tags follow the docxtemplater conventions used by the quotation template:
//
//	{name}              text substitution
//	{%name}             inline image
//	{#name}...{/name}   section: repeated for lists, rendered once when truthy
//	{^name}...{/name}   inverted section: rendered when falsy
//
// A section tag that is alone in its paragraph consumes the whole paragraph,
// so sections can span paragraphs and table rows.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const documentPart = "word/document.xml"

// TemplateLoadError reports a template that could not be fetched or is not
// a usable document package.
type TemplateLoadError struct {
	Location   string
	StatusCode int
	Reason     string
	Err        error
}

func (e *TemplateLoadError) Error() string {
	msg := "load template"
	if e.Location != "" {
		msg += " " + e.Location
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

type entry struct {
	name     string
	modified time.Time
	data     []byte
}

// Template is a parsed, immutable document package.
type Template struct {
	entries []entry
}

// Parse validates and reads a .docx package.
func Parse(data []byte) (*Template, error) {
	if len(data) == 0 {
		return nil, &TemplateLoadError{Reason: "empty template"}
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &TemplateLoadError{Reason: "not a valid archive", Err: err}
	}
	tpl := &Template{entries: make([]entry, 0, len(zr.File))}
	hasDocument := false
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, &TemplateLoadError{Reason: "open " + f.Name, Err: err}
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, &TemplateLoadError{Reason: "read " + f.Name, Err: err}
		}
		if f.Name == documentPart {
			hasDocument = true
		}
		tpl.entries = append(tpl.entries, entry{name: f.Name, modified: f.Modified, data: content})
	}
	if !hasDocument {
		return nil, &TemplateLoadError{Reason: "missing " + documentPart}
	}
	return tpl, nil
}

// Source yields raw template bytes.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// NewSource picks an HTTP source for http(s) URLs and a file source otherwise.
func NewSource(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return &HTTPSource{URL: location}
	}
	return FileSource{Path: location}
}

// HTTPSource fetches the template from a static file server.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Load(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &TemplateLoadError{Location: s.URL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TemplateLoadError{Location: s.URL, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TemplateLoadError{Location: s.URL, StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TemplateLoadError{Location: s.URL, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

// FileSource reads the template from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &TemplateLoadError{Location: s.Path, Err: err}
	}
	return data, nil
}

// Load fetches and parses a template.
func Load(ctx context.Context, src Source) (*Template, error) {
	data, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	tpl, err := Parse(data)
	if err != nil {
		if loadErr, ok := err.(*TemplateLoadError); ok && loadErr.Location == "" {
			loadErr.Location = location(src)
		}
		return nil, err
	}
	return tpl, nil
}

func location(src Source) string {
	switch s := src.(type) {
	case *HTTPSource:
		return s.URL
	case FileSource:
		return s.Path
	default:
		return ""
	}
}
