package docgen

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Delivery hands a finished document to its consumer. A failed delivery
// leaves no partial output behind where the medium allows it.
type Delivery interface {
	Deliver(ctx context.Context, doc Document) error
}

// HTTPDelivery streams the document as an attachment.
type HTTPDelivery struct {
	W http.ResponseWriter
}

func (d HTTPDelivery) Deliver(_ context.Context, doc Document) error {
	h := d.W.Header()
	h.Set("Content-Type", doc.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	h.Set("Content-Length", strconv.Itoa(len(doc.Data)))
	d.W.WriteHeader(http.StatusOK)
	if _, err := d.W.Write(doc.Data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// DirDelivery stores documents in a directory.
type DirDelivery struct {
	Dir string
}

// Path returns where doc is stored.
func (d DirDelivery) Path(doc Document) string {
	return filepath.Join(d.Dir, filepath.Base(doc.Filename))
}

func (d DirDelivery) Deliver(_ context.Context, doc Document) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp, err := os.CreateTemp(d.Dir, ".quotedoc-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(doc.Data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.Path(doc)); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}
