package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/odyssey-erp/quotedoc/internal/docgen"
	"github.com/odyssey-erp/quotedoc/internal/docgen/format"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

// Generator renders quotation documents.
type Generator interface {
	Generate(ctx context.Context, req docgen.Request) (docgen.Document, error)
}

// RenderCLI renders a quotation document to disk without the HTTP server.
type RenderCLI struct {
	source    quotation.Source
	generator Generator
}

// NewRenderCLI constructs the helper.
func NewRenderCLI(source quotation.Source, generator Generator) *RenderCLI {
	return &RenderCLI{source: source, generator: generator}
}

// RenderOptions defines available flags for the render command.
type RenderOptions struct {
	QuotationID   string
	OfferID       string
	SelectedNotes []int
	Format        string
	OutDir        string
	JSONOutput    bool
	Stdout        io.Writer
	Stderr        io.Writer
}

// RenderSummary describes the JSON response for render.
type RenderSummary struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
}

// RenderCommand executes the render workflow and returns a process exit
// code: 0 on success, 1 on usage errors, 2 when the quotation cannot be
// printed and 3 on infrastructure failures.
func (c *RenderCLI) RenderCommand(ctx context.Context, opts RenderOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if strings.TrimSpace(opts.QuotationID) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "render: --quotation is required")
		return 1
	}
	outFormat := docgen.Format(strings.ToLower(strings.TrimSpace(opts.Format)))
	if outFormat == "" {
		outFormat = docgen.FormatDOCX
	}
	if !outFormat.Valid() {
		_, _ = fmt.Fprintf(opts.Stderr, "render: unsupported format %q (expected docx or pdf)\n", opts.Format)
		return 1
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}

	q, err := c.source.Get(ctx, opts.QuotationID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: load quotation: %v\n", err)
		return exitCode(err)
	}
	doc, err := c.generator.Generate(ctx, docgen.Request{
		Quotation:     q,
		OfferID:       opts.OfferID,
		SelectedNotes: opts.SelectedNotes,
		Format:        outFormat,
	})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: %v\n", err)
		return exitCode(err)
	}
	delivery := docgen.DirDelivery{Dir: opts.OutDir}
	if err := delivery.Deliver(ctx, doc); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: %v\n", err)
		return 3
	}
	summary := RenderSummary{
		Path:        delivery.Path(doc),
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Bytes:       len(doc.Data),
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "render: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "wrote %s (%d bytes)\n", summary.Path, summary.Bytes)
	return 0
}

func exitCode(err error) int {
	var noOffer *docgen.NoOfferError
	var renderErr *docgen.RenderError
	switch {
	case errors.Is(err, quotation.ErrNotFound), errors.Is(err, quotation.ErrInvalidStatus),
		errors.As(err, &noOffer), errors.As(err, &renderErr):
		return 2
	default:
		return 3
	}
}

// ParseNotes parses a comma separated list of note indices.
func ParseNotes(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	notes := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid note index %q", part)
		}
		if n < 0 || n >= len(format.Boilerplate) {
			return nil, fmt.Errorf("note index %d out of range 0-%d", n, len(format.Boilerplate)-1)
		}
		notes = append(notes, n)
	}
	return notes, nil
}
