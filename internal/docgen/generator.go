package docgen

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/odyssey-erp/quotedoc/internal/docgen/assets"
	"github.com/odyssey-erp/quotedoc/internal/docgen/docx"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

// Format is an output document format.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// Valid reports whether f is supported.
func (f Format) Valid() bool {
	return f == FormatDOCX || f == FormatPDF
}

// Request describes one document generation.
type Request struct {
	Quotation     quotation.Quotation
	OfferID       string
	SelectedNotes []int
	Format        Format
}

// Document is a generated file.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Converter turns a rendered DOCX into PDF.
type Converter interface {
	ConvertOffice(ctx context.Context, filename string, data []byte) ([]byte, error)
}

// Recorder receives generation outcomes.
type Recorder interface {
	ObserveDocument(format, result string, elapsed time.Duration)
	ImageSkipped(kind string)
}

// Config wires the generator dependencies.
type Config struct {
	Template  docx.Source
	Renderer  *docx.Renderer
	Collector *assets.Collector
	Converter Converter
	Recorder  Recorder
	Logger    *slog.Logger
}

// Generator runs the document pipeline. Calls are independent and share no
// mutable state.
type Generator struct {
	template  docx.Source
	renderer  *docx.Renderer
	collector *assets.Collector
	assembler *Assembler
	converter Converter
	recorder  Recorder
	logger    *slog.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = docx.NewRenderer()
	}
	var urls FileURLer
	if cfg.Collector != nil {
		urls = cfg.Collector.Fetcher()
		if cfg.Recorder != nil {
			recorder := cfg.Recorder
			cfg.Collector.OnSkip(func(err *assets.ImageProcessingError) {
				recorder.ImageSkipped(string(err.Kind))
			})
		}
	}
	return &Generator{
		template:  cfg.Template,
		renderer:  renderer,
		collector: cfg.Collector,
		assembler: NewAssembler(urls),
		converter: cfg.Converter,
		recorder:  cfg.Recorder,
		logger:    logger,
	}
}

// Generate builds the document for req. Every failure is fatal except
// individual image failures, which only drop the affected image.
func (g *Generator) Generate(ctx context.Context, req Request) (Document, error) {
	start := time.Now()
	if req.Format == "" {
		req.Format = FormatDOCX
	}
	doc, err := g.generate(ctx, req)
	result := "success"
	if err != nil {
		result = "failure"
	}
	if g.recorder != nil {
		g.recorder.ObserveDocument(string(req.Format), result, time.Since(start))
	}
	if err != nil {
		return Document{}, err
	}
	g.logger.Info("document generated",
		slog.String("quotation_number", req.Quotation.Number),
		slog.String("filename", doc.Filename),
		slog.Int("bytes", len(doc.Data)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (Document, error) {
	if !req.Format.Valid() {
		return Document{}, fmt.Errorf("unsupported format %q", req.Format)
	}
	if g.template == nil {
		return Document{}, &docx.TemplateLoadError{Reason: "no template configured"}
	}
	offer, err := SelectOffer(req.Quotation, req.OfferID)
	if err != nil {
		return Document{}, err
	}

	in := AssembleInput{
		Quotation:     req.Quotation,
		Offer:         offer,
		SelectedNotes: req.SelectedNotes,
		ItemText:      BuildItemText(offer.Items),
	}
	if g.collector != nil {
		drawingReqs, notesReqs := imageRequests(offer)
		if in.Drawings, err = g.collector.Collect(ctx, drawingReqs); err != nil {
			return Document{}, err
		}
		if in.NotesImages, err = g.collector.Collect(ctx, notesReqs); err != nil {
			return Document{}, err
		}
	}
	fields := g.assembler.Assemble(in)

	tpl, err := docx.Load(ctx, g.template)
	if err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	data, err := g.renderer.Render(tpl, fields)
	if err != nil {
		return Document{}, &RenderError{Err: err}
	}

	name := Filename(req.Quotation.Number, offer, FormatDOCX)
	if req.Format == FormatPDF {
		if g.converter == nil {
			return Document{}, &FetchError{Resource: "pdf converter", Message: "not configured"}
		}
		pdf, err := g.converter.ConvertOffice(ctx, name, data)
		if err != nil {
			return Document{}, &FetchError{Resource: "pdf conversion", Err: err}
		}
		data = pdf
	}
	return Document{
		Filename:    Filename(req.Quotation.Number, offer, req.Format),
		ContentType: req.Format.ContentType(),
		Data:        data,
	}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Filename builds Quotation_{number}[_Offer_{n}][_Revision_{r}].{ext}.
// Characters outside [A-Za-z0-9._-] in the quotation number become
// underscores.
func Filename(quotationNumber string, offer *quotation.Offer, f Format) string {
	name := "Quotation_" + unsafeFilenameChars.ReplaceAllString(quotationNumber, "_")
	if offer != nil && offer.OfferNumber > 0 {
		name += "_Offer_" + strconv.Itoa(offer.OfferNumber)
	}
	if offer != nil && offer.RevisionNumber > 0 {
		name += "_Revision_" + strconv.Itoa(offer.RevisionNumber)
	}
	return name + "." + string(f)
}
