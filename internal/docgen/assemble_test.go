package docgen

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedoc/internal/docgen/assets"
	"github.com/odyssey-erp/quotedoc/internal/docgen/docx"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

func sampleQuotation() quotation.Quotation {
	return quotation.Quotation{
		ID:            "q1",
		Number:        "001/QUO/2024",
		CustomerName:  "PT Sejahtera",
		ContactPerson: quotation.ContactPerson{Name: "Budi", Gender: quotation.GenderMale},
		MarketingName: "Sari",
		Status:        quotation.Status{Type: quotation.StatusOpen},
		CreatedAt:     time.Date(2024, time.August, 17, 9, 0, 0, 0, time.UTC),
		Offers: []quotation.Offer{{
			ID:          "o1",
			OfferNumber: 1,
			Items:       []quotation.OfferItem{simpleItem("Bus", "Hino", "AC unit")},
		}},
	}
}

func nestedQuotation() quotation.Quotation {
	q := sampleQuotation()
	q.Offers = []quotation.Offer{
		{
			ID:          "o1",
			OfferNumber: 1,
			Items:       []quotation.OfferItem{simpleItem("Bus", "Hino")},
			Revisions: []quotation.Offer{{
				ID:             "o1r1",
				OfferNumber:    1,
				RevisionNumber: 1,
				ParentOfferID:  "o1",
				Items:          []quotation.OfferItem{simpleItem("Bus", "Hino")},
				Revisions: []quotation.Offer{{
					ID:             "o1r2",
					OfferNumber:    1,
					RevisionNumber: 2,
					ParentOfferID:  "o1r1",
					Items:          []quotation.OfferItem{simpleItem("Bus Pariwisata", "Hino RK8")},
				}},
			}},
		},
		{ID: "o2", OfferNumber: 2, Items: []quotation.OfferItem{simpleItem("Box", "Isuzu")}},
	}
	return q
}

func TestSelectOfferResolvesNestedWinningRevision(t *testing.T) {
	q := nestedQuotation()
	q.Status = quotation.Status{Type: quotation.StatusWin, SelectedOfferID: "o1r2"}

	offer, err := SelectOffer(q, "")
	require.NoError(t, err)
	assert.Equal(t, "o1r2", offer.ID)
	assert.Equal(t, "Bus Pariwisata", offer.Items[0].Karoseri)
}

func TestSelectOfferDefaultsToFirstOffer(t *testing.T) {
	offer, err := SelectOffer(nestedQuotation(), "")
	require.NoError(t, err)
	assert.Equal(t, "o1", offer.ID)
}

func TestSelectOfferExplicitIDOverridesStatus(t *testing.T) {
	q := nestedQuotation()
	q.Status = quotation.Status{Type: quotation.StatusWin, SelectedOfferID: "o1r2"}

	offer, err := SelectOffer(q, "o2")
	require.NoError(t, err)
	assert.Equal(t, "o2", offer.ID)
}

func TestSelectOfferFailures(t *testing.T) {
	noOffers := sampleQuotation()
	noOffers.Offers = nil

	noItems := sampleQuotation()
	noItems.Offers[0].Items = nil

	unknownWinner := sampleQuotation()
	unknownWinner.Status = quotation.Status{Type: quotation.StatusWin, SelectedOfferID: "gone"}

	cases := map[string]struct {
		q       quotation.Quotation
		offerID string
	}{
		"no offers":      {q: noOffers},
		"no items":       {q: noItems},
		"unknown winner": {q: unknownWinner},
		"unknown id":     {q: sampleQuotation(), offerID: "missing"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := SelectOffer(tc.q, tc.offerID)
			var noOffer *NoOfferError
			require.True(t, errors.As(err, &noOffer), "got %v", err)
			assert.Equal(t, "001/QUO/2024", noOffer.QuotationNumber)
		})
	}
}

func TestComputeTotals(t *testing.T) {
	offer := &quotation.Offer{Items: []quotation.OfferItem{
		{Price: decimal.NewFromInt(600_000), Netto: decimal.NewFromInt(500_000)},
		{Price: decimal.NewFromInt(600_000), Netto: decimal.NewFromInt(500_000)},
	}}
	totals := ComputeTotals(offer)
	assert.True(t, totals.Netto.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, totals.PPN.Equal(decimal.NewFromInt(110_000)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(1_110_000)))
	assert.True(t, totals.Items.Equal(decimal.NewFromInt(1_200_000)))

	// 1.000.005 * 0.11 = 110.000,55
	offer.Items[1].Netto = decimal.NewFromInt(500_005)
	totals = ComputeTotals(offer)
	assert.True(t, totals.PPN.Equal(decimal.NewFromInt(110_001)), totals.PPN.String())
}

func TestAssembleScenarioFields(t *testing.T) {
	q := sampleQuotation()
	offer, err := SelectOffer(q, "")
	require.NoError(t, err)

	fields := NewAssembler(nil).Assemble(AssembleInput{
		Quotation:     q,
		Offer:         offer,
		SelectedNotes: []int{0},
		ItemText:      BuildItemText(offer.Items),
	})

	assert.Equal(t, "001/QUO/2024", fields["quotation_number"])
	assert.Equal(t, "17 Agustus 2024", fields["quotation_date"])
	assert.Equal(t, "PT Sejahtera", fields["customer_name"])
	assert.Equal(t, "Budi", fields["contact_person"])
	assert.Equal(t, "Bapak", fields["contact_gender"])
	assert.Equal(t, "Sari", fields["marketing_name"])
	assert.Equal(t, "Sari", fields["signature"])
	assert.Equal(t, "1", fields["offer_number"])
	assert.Equal(t, false, fields["exclude_ppn"])
	assert.True(t, strings.HasPrefix(fields["item"].(string), "1. Karoseri     : Bus\n"))
	assert.Contains(t, fields["item"], "Chassis         : Hino")
	assert.True(t, strings.HasPrefix(fields["notes"].(string), "     -   Harga tersebut diatas Sudah Termasuk PPN 11%"))
	assert.Equal(t, "Rp 100.000.000", fields["total_items"])
	assert.Equal(t, "Rp 95.000.000", fields["total_netto"])
	assert.Equal(t, "Rp 10.450.000", fields["ppn"])
	assert.Equal(t, "Rp 105.450.000", fields["total"])
	assert.Equal(t, "", fields["drawings_info"])
	assert.Equal(t, false, fields["has_drawings"])
	assert.Equal(t, false, fields["has_images"])
	assert.Equal(t, false, fields["has_notes_images"])
	assert.Empty(t, fields["images"])
	assert.Empty(t, fields["notes_images"])
}

type fakeURLs struct{}

func (fakeURLs) FileURL(kind assets.Kind, ownerID, fileID string) string {
	return "https://assets.example/" + string(kind) + "/" + ownerID + "/" + fileID
}

func drawingItem(karoseri, drawingID, fileID string) quotation.OfferItem {
	item := simpleItem(karoseri, "Hino")
	item.Drawing = &quotation.DrawingSpecification{
		ID:            drawingID,
		DrawingNumber: "DRW-" + drawingID,
		TruckType:     "FM 260 JD",
		File: &quotation.AttachedFile{
			FileID:       fileID,
			OriginalName: drawingID + ".jpg",
			Type:         "image/jpeg",
			Size:         1536,
			UploadDate:   time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	return item
}

func TestAssembleImagesAndDrawingsInfo(t *testing.T) {
	q := sampleQuotation()
	noFile := simpleItem("Tangki", "UD")
	noFile.Drawing = &quotation.DrawingSpecification{ID: "d0", DrawingNumber: "DRW-d0"}
	q.Offers[0].Items = []quotation.OfferItem{drawingItem("Bus", "d1", "f1"), noFile, drawingItem("Box", "d3", "f3")}
	q.Offers[0].NotesImages = []quotation.NotesImage{{ID: "n1", File: &quotation.AttachedFile{FileID: "nf1", OriginalName: "denah.png"}}}
	offer := &q.Offers[0]

	drawings, notes := imageRequests(offer)
	require.Len(t, drawings, 2)
	assert.Equal(t, 2, drawings[1].Index)
	require.Len(t, notes, 1)

	fields := NewAssembler(fakeURLs{}).Assemble(AssembleInput{
		Quotation: q,
		Offer:     offer,
		Drawings: []assets.FetchedImage{
			{ImageRequest: drawings[0], Data: []byte("a")},
			{ImageRequest: drawings[1], Data: []byte("b")},
		},
		NotesImages: []assets.FetchedImage{{ImageRequest: notes[0], Data: []byte("c")}},
	})

	assert.Equal(t, docx.Image{Data: []byte("a"), Name: "d1.jpg"}, fields["image_1"])
	assert.Equal(t, docx.Image{Data: []byte("b"), Name: "d3.jpg"}, fields["image_2"])
	assert.Equal(t, docx.Image{Data: []byte("c"), Name: "denah.png"}, fields["image_3"])

	images := fields["images"].([]map[string]any)
	require.Len(t, images, 2)
	assert.Equal(t, 3, images[1]["item_index"])
	assert.Equal(t, "Box", images[1]["karoseri"])
	assert.Equal(t, "DRW-d3", images[1]["drawing_number"])
	notesImages := fields["notes_images"].([]map[string]any)
	require.Len(t, notesImages, 1)
	assert.Equal(t, "image_3", notesImages[0]["image_key"])
	assert.Equal(t, true, fields["has_images"])
	assert.Equal(t, true, fields["has_notes_images"])

	info := fields["drawings_info"].(string)
	assert.True(t, strings.HasPrefix(info, docx.PageBreak+"INFORMASI GAMBAR TEKNIS"))
	assert.Contains(t, info, "Item 1: Bus - Hino")
	assert.Contains(t, info, "Item 3: Box - Hino")
	assert.NotContains(t, info, "DRW-d0")
	assert.Contains(t, info, "Ukuran File    : 1.5 KB")
	assert.Contains(t, info, "Tanggal Upload : 2 Januari 2024")
	assert.Contains(t, info, "URL            : https://assets.example/drawing/d1/f1")
	assert.Equal(t, true, fields["has_drawings"])
}

func TestFilename(t *testing.T) {
	offer := &quotation.Offer{OfferNumber: 2, RevisionNumber: 1}
	assert.Equal(t, "Quotation_001_QUO_2024_Offer_2_Revision_1.docx", Filename("001/QUO/2024", offer, FormatDOCX))
	assert.Equal(t, "Quotation_Q-7_Offer_1.pdf", Filename("Q-7", &quotation.Offer{OfferNumber: 1}, FormatPDF))
	assert.Equal(t, "Quotation_Q_7.docx", Filename("Q 7", nil, FormatDOCX))
}
