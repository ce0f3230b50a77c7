package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedoc/internal/docgen"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
	"github.com/odyssey-erp/quotedoc/jobs"
)

type stubSource map[string]quotation.Quotation

func (s stubSource) Get(_ context.Context, id string) (quotation.Quotation, error) {
	q, ok := s[id]
	if !ok {
		return quotation.Quotation{}, quotation.ErrNotFound
	}
	return q, nil
}

type stubGenerator struct {
	err error
	req docgen.Request
}

func (g *stubGenerator) Generate(_ context.Context, req docgen.Request) (docgen.Document, error) {
	g.req = req
	if g.err != nil {
		return docgen.Document{}, g.err
	}
	return docgen.Document{
		Filename:    docgen.Filename(req.Quotation.Number, nil, req.Format),
		ContentType: req.Format.ContentType(),
		Data:        []byte("doc"),
	}, nil
}

func TestRenderCommandJSONSuccess(t *testing.T) {
	dir := t.TempDir()
	gen := &stubGenerator{}
	cli := NewRenderCLI(stubSource{"q1": {ID: "q1", Number: "Q-1"}}, gen)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := cli.RenderCommand(context.Background(), RenderOptions{
		QuotationID:   "q1",
		OfferID:       "o2",
		SelectedNotes: []int{1},
		Format:        "PDF",
		OutDir:        dir,
		JSONOutput:    true,
		Stdout:        stdout,
		Stderr:        stderr,
	})
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, docgen.FormatPDF, gen.req.Format)
	assert.Equal(t, "o2", gen.req.OfferID)

	var summary RenderSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, filepath.Join(dir, "Quotation_Q-1.pdf"), summary.Path)
	assert.Equal(t, 3, summary.Bytes)
	data, err := os.ReadFile(summary.Path)
	require.NoError(t, err)
	assert.Equal(t, "doc", string(data))
}

func TestRenderCommandExitCodes(t *testing.T) {
	source := stubSource{"q1": {ID: "q1", Number: "Q-1"}}
	cases := []struct {
		name string
		opts RenderOptions
		err  error
		code int
	}{
		{"missing id", RenderOptions{}, nil, 1},
		{"bad format", RenderOptions{QuotationID: "q1", Format: "odt"}, nil, 1},
		{"unknown quotation", RenderOptions{QuotationID: "nope"}, nil, 2},
		{"no offer", RenderOptions{QuotationID: "q1"}, &docgen.NoOfferError{Reason: "quotation has no offers"}, 2},
		{"upstream", RenderOptions{QuotationID: "q1"}, &docgen.FetchError{Resource: "template"}, 3},
		{"unexpected", RenderOptions{QuotationID: "q1"}, errors.New("boom"), 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stderr := new(bytes.Buffer)
			tc.opts.Stdout = new(bytes.Buffer)
			tc.opts.Stderr = stderr
			tc.opts.OutDir = t.TempDir()
			code := NewRenderCLI(source, &stubGenerator{err: tc.err}).RenderCommand(context.Background(), tc.opts)
			assert.Equal(t, tc.code, code)
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestParseNotes(t *testing.T) {
	notes, err := ParseNotes(" 0, 2,5 ")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 5}, notes)

	notes, err = ParseNotes("")
	require.NoError(t, err)
	assert.Nil(t, notes)

	_, err = ParseNotes("1,x")
	require.Error(t, err)
	_, err = ParseNotes("6")
	require.Error(t, err)
}

func TestJobsCLITrigger(t *testing.T) {
	srv := miniredis.RunT(t)
	cli, err := NewJobsCLI(asynq.RedisClientOpt{Addr: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	info, err := cli.Trigger(context.Background(), jobs.TaskQuotationDocumentGenerate, TriggerOptions{ExportID: "e9"})
	require.NoError(t, err)
	assert.Equal(t, "export:e9", info.ID)
	assert.Equal(t, jobs.QueueDocuments, info.Queue)

	_, err = cli.Trigger(context.Background(), jobs.TaskQuotationDocumentGenerate, TriggerOptions{})
	require.Error(t, err)
	_, err = cli.Trigger(context.Background(), "unknown:task", TriggerOptions{})
	require.Error(t, err)
}
