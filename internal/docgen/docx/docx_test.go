package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	testRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`</Relationships>`
)

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
}

func para(texts ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, t := range texts {
		b.WriteString("<w:r><w:t>" + t + "</w:t></w:r>")
	}
	b.WriteString("</w:p>")
	return b.String()
}

func buildDocx(t *testing.T, body string, extra map[string]string) []byte {
	t.Helper()
	files := map[string]string{
		"[Content_Types].xml":          testContentTypes,
		"word/_rels/document.xml.rels": testRels,
		"word/document.xml":            wrapBody(body),
	}
	for name, content := range extra {
		files[name] = content
	}
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func render(t *testing.T, body string, data map[string]any) (string, []byte, error) {
	t.Helper()
	tpl, err := Parse(buildDocx(t, body, nil))
	require.NoError(t, err)
	out, err := NewRenderer().Render(tpl, data)
	if err != nil {
		return "", nil, err
	}
	return readPart(t, out, documentPart), out, nil
}

func TestRenderSubstitutesSplitTags(t *testing.T) {
	doc, _, err := render(t, para("Kepada {cust", "omer", "}, terima kasih"), map[string]any{
		"customer": "PT Maju & Jaya",
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "Kepada PT Maju &amp; Jaya")
	assert.Contains(t, doc, ", terima kasih")
	assert.NotContains(t, doc, "{")
}

func TestRenderConvertsControlCharacters(t *testing.T) {
	doc, _, err := render(t, para("{text}"), map[string]any{
		"text": "baris 1\nbaris 2\tkolom" + PageBreak + "halaman 2",
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "baris 1</w:t><w:br/>")
	assert.Contains(t, doc, "<w:tab/>")
	assert.Contains(t, doc, `<w:br w:type="page"/>`)
}

func TestRenderDropsCharactersInvalidInXML(t *testing.T) {
	doc, _, err := render(t, para("{customer}"), map[string]any{
		"customer": "PT Maju\x0bJaya\x00\x01\x08 \uFFFE&amp",
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "PT Maju</w:t><w:br/>")
	assert.Contains(t, doc, "Jaya &amp;amp</w:t>")

	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
}

func TestRenderMissingFieldFails(t *testing.T) {
	_, _, err := render(t, para("{customer} {unknown}"), map[string]any{"customer": "A"})
	require.Error(t, err)
	var tplErr *TemplateError
	require.True(t, errors.As(err, &tplErr))
	assert.Equal(t, "{unknown}", tplErr.Tag)
}

func TestRenderSectionLoopsAcrossParagraphs(t *testing.T) {
	body := para("{#items}") + para("- {name}") + para("{/items}") + para("akhir")
	doc, _, err := render(t, body, map[string]any{
		"items": []map[string]any{{"name": "Dump Truck"}, {"name": "Box Besi"}},
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "- Dump Truck")
	assert.Contains(t, doc, "- Box Besi")
	assert.Less(t, strings.Index(doc, "Dump Truck"), strings.Index(doc, "Box Besi"))
	assert.NotContains(t, doc, "{#items}")
	assert.NotContains(t, doc, "{/items}")
	assert.Contains(t, doc, "akhir")
}

func TestRenderSectionScopeFallsBackToParent(t *testing.T) {
	body := para("{#items}{name} untuk {customer};{/items}")
	doc, _, err := render(t, body, map[string]any{
		"customer": "CV Sentosa",
		"items":    []any{map[string]any{"name": "Wing Box"}},
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "Wing Box untuk CV Sentosa;")
}

func TestRenderConditionalSections(t *testing.T) {
	body := para("{#has_notes}ada catatan{/has_notes}{^has_notes}tanpa catatan{/has_notes}")

	doc, _, err := render(t, body, map[string]any{"has_notes": true})
	require.NoError(t, err)
	assert.Contains(t, doc, "ada catatan")
	assert.NotContains(t, doc, "tanpa catatan")

	doc, _, err = render(t, body, map[string]any{})
	require.NoError(t, err)
	assert.NotContains(t, doc, "ada catatan")
	assert.Contains(t, doc, "tanpa catatan")
}

func TestRenderRejectsMalformedTags(t *testing.T) {
	cases := map[string]string{
		"unterminated":   para("Halo {customer"),
		"stray closing":  para("Halo customer}"),
		"unclosed":       para("{#items}") + para("x"),
		"unexpected end": para("x{/items}"),
		"mismatched":     para("{#a}{#b}{/a}{/b}"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := render(t, body, map[string]any{"customer": "A"})
			var tplErr *TemplateError
			require.True(t, errors.As(err, &tplErr), "got %v", err)
		})
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestRenderEmbedsImages(t *testing.T) {
	body := para("{%image_1}") + para("{#notes_images}") + para("{%notes_image}") + para("{/notes_images}")
	pic := pngBytes(t)
	doc, out, err := render(t, body, map[string]any{
		"image_1":      Image{Data: pic, Name: "drawing.png"},
		"notes_images": []map[string]any{{"notes_image": Image{Data: pic}}},
	})
	require.NoError(t, err)

	assert.Contains(t, doc, `xmlns:wp="`+nsWP+`"`)
	assert.Contains(t, doc, `xmlns:r="`+nsR+`"`)
	assert.Contains(t, doc, `r:embed="rId2"`)
	assert.Contains(t, doc, `r:embed="rId3"`)
	assert.NotContains(t, doc, "QD_DOCPR_")
	assert.Contains(t, doc, `cx="5238750" cy="7143750"`)
	assert.Contains(t, doc, `cx="2857500" cy="3810000"`)

	rels := readPart(t, out, relsPart)
	assert.Contains(t, rels, `Id="rId1"`)
	assert.Contains(t, rels, `Id="rId2" Type="`+imageRelType+`" Target="media/quotedoc_image1.png"`)
	assert.Contains(t, rels, `Target="media/quotedoc_image2.png"`)

	types := readPart(t, out, contentTypes)
	assert.Equal(t, 1, strings.Count(types, `Extension="png"`))
	assert.Contains(t, types, `ContentType="image/png"`)

	assert.Equal(t, string(pic), readPart(t, out, "word/media/quotedoc_image1.png"))
}

func TestRenderWithoutImagesKeepsPackageParts(t *testing.T) {
	_, out, err := render(t, para("{a}"), map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, testRels, readPart(t, out, relsPart))
	assert.Equal(t, testContentTypes, readPart(t, out, contentTypes))
}

func TestRenderImageInHeaderFails(t *testing.T) {
	header := `<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` + para("{%logo}") + `</w:hdr>`
	tpl, err := Parse(buildDocx(t, para("x"), map[string]string{"word/header1.xml": header}))
	require.NoError(t, err)
	_, err = NewRenderer().Render(tpl, map[string]any{"logo": Image{Data: pngBytes(t)}})
	var tplErr *TemplateError
	require.True(t, errors.As(err, &tplErr))
	assert.Equal(t, "word/header1.xml", tplErr.Part)
}

func TestRenderHeaderFields(t *testing.T) {
	header := `<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` + para("No. {no}") + `</w:hdr>`
	tpl, err := Parse(buildDocx(t, para("x"), map[string]string{"word/header1.xml": header}))
	require.NoError(t, err)
	out, err := NewRenderer().Render(tpl, map[string]any{"no": "Q-001"})
	require.NoError(t, err)
	assert.Contains(t, readPart(t, out, "word/header1.xml"), "No. Q-001")
}

func TestParseRejectsInvalidPackages(t *testing.T) {
	_, err := Parse(nil)
	var loadErr *TemplateLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "empty template", loadErr.Reason)

	_, err = Parse([]byte("not a zip"))
	require.True(t, errors.As(err, &loadErr))

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = Parse(buf.Bytes())
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Reason, documentPart)
}

func TestLoadFromFileAndHTTP(t *testing.T) {
	data := buildDocx(t, para("{a}"), nil)
	path := filepath.Join(t.TempDir(), "template.docx")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	tpl, err := Load(context.Background(), NewSource(path))
	require.NoError(t, err)
	require.NotNil(t, tpl)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/template.docx" {
			_, _ = w.Write(data)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tpl, err = Load(context.Background(), NewSource(srv.URL+"/template.docx"))
	require.NoError(t, err)
	require.NotNil(t, tpl)

	_, err = Load(context.Background(), NewSource(srv.URL+"/missing.docx"))
	var loadErr *TemplateLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, http.StatusNotFound, loadErr.StatusCode)
	assert.Equal(t, srv.URL+"/missing.docx", loadErr.Location)
}
