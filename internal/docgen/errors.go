package docgen

import (
	"fmt"

	"github.com/odyssey-erp/quotedoc/internal/docgen/assets"
)

// FetchError reports a failed asset, template or conversion round trip.
type FetchError = assets.FetchError

// ImageProcessingError reports a skipped image. It never aborts generation.
type ImageProcessingError = assets.ImageProcessingError

// NoOfferError is returned before any network call when no offer can be
// printed: the requested offer is unknown or it has no items.
type NoOfferError struct {
	QuotationNumber string
	OfferID         string
	Reason          string
}

func (e *NoOfferError) Error() string {
	if e.OfferID != "" {
		return fmt.Sprintf("quotation %s: offer %s: %s", e.QuotationNumber, e.OfferID, e.Reason)
	}
	return fmt.Sprintf("quotation %s: %s", e.QuotationNumber, e.Reason)
}

// RenderError wraps a template binding or serialization failure.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return "render document: " + e.Err.Error()
}

func (e *RenderError) Unwrap() error { return e.Err }
