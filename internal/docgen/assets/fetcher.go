package assets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Kind distinguishes the two asset families that share the fetch contract.
type Kind string

const (
	KindDrawing Kind = "drawing"
	KindNotes   Kind = "notes"
)

// Fetcher retrieves images from the asset server and rotates them for the
// quotation template.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	tokens     AuthTokenProvider
	transform  ImageTransform
}

// NewFetcher constructs a Fetcher. A nil transform falls back to JPEGRotator.
func NewFetcher(baseURL string, tokens AuthTokenProvider, transform ImageTransform) *Fetcher {
	if transform == nil {
		transform = JPEGRotator{}
	}
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		transform:  transform,
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	if client != nil {
		f.httpClient = client
	}
	return f
}

func (f *Fetcher) filePath(kind Kind, ownerID, fileID string) string {
	family := "drawings"
	if kind == KindNotes {
		family = "notes-images"
	}
	return fmt.Sprintf("/api/assets/%s/%s/files/%s", family, url.PathEscape(ownerID), url.PathEscape(fileID))
}

// FileURL is the public, token-less link to an asset file.
func (f *Fetcher) FileURL(kind Kind, ownerID, fileID string) string {
	return f.baseURL + f.filePath(kind, ownerID, fileID)
}

type base64Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Base64 string `json:"base64"`
	} `json:"data"`
}

// FetchBase64 returns the raw base64 payload of an asset file.
func (f *Fetcher) FetchBase64(ctx context.Context, kind Kind, ownerID, fileID string) (string, error) {
	resource := f.filePath(kind, ownerID, fileID) + "/base64"
	endpoint := f.baseURL + resource
	if f.tokens != nil {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			return "", &FetchError{Resource: resource, Err: err}
		}
		if token != "" {
			endpoint += "?token=" + url.QueryEscape(token)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &FetchError{Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{Resource: resource, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{Resource: resource, StatusCode: resp.StatusCode, Err: err}
	}

	var payload base64Response
	decodeErr := json.Unmarshal(body, &payload)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(payload.Message)
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &FetchError{Resource: resource, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &FetchError{Resource: resource, StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if !payload.Success {
		msg := strings.TrimSpace(payload.Message)
		if msg == "" {
			msg = "asset server reported failure"
		}
		return "", &FetchError{Resource: resource, StatusCode: resp.StatusCode, Message: msg}
	}
	if payload.Data.Base64 == "" {
		return "", &FetchError{Resource: resource, StatusCode: resp.StatusCode, Message: "empty image payload"}
	}
	return payload.Data.Base64, nil
}

// FetchDrawingBase64 fetches a technical drawing file.
func (f *Fetcher) FetchDrawingBase64(ctx context.Context, drawingID, fileID string) (string, error) {
	return f.FetchBase64(ctx, KindDrawing, drawingID, fileID)
}

// FetchNotesImageBase64 fetches a notes image file.
func (f *Fetcher) FetchNotesImageBase64(ctx context.Context, imageID, fileID string) (string, error) {
	return f.FetchBase64(ctx, KindNotes, imageID, fileID)
}

// Rotate90 rotates a base64 image 90 degrees clockwise and returns the
// base64 of the re-encoded JPEG.
func (f *Fetcher) Rotate90(encoded string) (string, error) {
	rotated, err := f.rotate(encoded)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(rotated), nil
}

func (f *Fetcher) rotate(encoded string) ([]byte, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	return f.transform.RotateClockwise90(raw)
}

// decodeBase64 accepts plain payloads as well as data URLs.
func decodeBase64(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, errors.New("malformed data url")
		}
		encoded = encoded[comma+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}
