package assets

import (
	"fmt"
	"strings"
)

// FetchError reports a failed asset or template retrieval: a transport
// error, a non-success status, or a payload whose success flag is false.
type FetchError struct {
	Resource   string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("fetch ")
	b.WriteString(e.Resource)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// ImageProcessingError reports an image that could not be fetched or
// transformed. It is never fatal for a document; the image is skipped.
type ImageProcessingError struct {
	Kind    Kind
	OwnerID string
	FileID  string
	Err     error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("%s image %s/%s: %v", e.Kind, e.OwnerID, e.FileID, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }
