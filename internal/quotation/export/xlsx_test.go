package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

func TestOffersXLSXListsOffersAndRevisions(t *testing.T) {
	created := time.Date(2024, time.August, 17, 9, 0, 0, 0, time.UTC)
	followUp := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	q := quotation.Quotation{
		Number:       "001/QUO/2024",
		CustomerName: "=PT Sejahtera",
		CreatedAt:    created,
		LastFollowUp: &followUp,
		Status:       quotation.Status{Type: quotation.StatusLoss, Reason: "harga"},
		Offers: []quotation.Offer{
			{
				ID:          "o1",
				OfferNumber: 1,
				CreatedAt:   created,
				Items: []quotation.OfferItem{
					{Karoseri: "Bus", Chassis: "Hino", Price: decimal.NewFromInt(100), Netto: decimal.NewFromInt(90),
						Discount: quotation.Discount{Type: quotation.DiscountPercentage, Value: decimal.NewFromInt(10)}},
					{Karoseri: "Box", Chassis: "Isuzu", Price: decimal.NewFromInt(50), Netto: decimal.NewFromInt(50)},
				},
				Revisions: []quotation.Offer{
					{ID: "o1r1", OfferNumber: 1, RevisionNumber: 1, ExcludePPN: true, CreatedAt: created,
						Items: []quotation.OfferItem{{Karoseri: "Bus", Chassis: "Hino", Price: decimal.NewFromInt(95), Netto: decimal.NewFromInt(90),
							Discount: quotation.Discount{Type: quotation.DiscountAmount, Value: decimal.NewFromInt(5)}}}},
				},
			},
			{ID: "o2", OfferNumber: 2, CreatedAt: created},
		},
	}

	data, err := OffersXLSX(q)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)

	assert.Equal(t, "Quotation 001/QUO/2024", rows[0][0])
	assert.Equal(t, []string{"'=PT Sejahtera", "", "", "Status: loss (terkunci)"}, rows[1])
	assert.Equal(t, []string{"Dibuat: 17 Agustus 2024", "", "", "Follow up: 2 September 2024"}, rows[2])
	assert.Equal(t, headers, rows[HeaderRow-1])

	body := rows[HeaderRow:]
	require.Len(t, body, 7)
	assert.Equal(t, []string{"1", "0", "", "17 Agustus 2024", "1", "Bus", "Hino", "100", "10", "90", "Termasuk"}, body[0])
	assert.Equal(t, []string{"1", "0", "", "17 Agustus 2024", "2", "Box", "Isuzu", "50", "0", "50", "Termasuk"}, body[1])
	assert.Equal(t, []string{"", "", "", "", "", "", "Total", "150", "10", "140"}, body[2])
	assert.Equal(t, []string{"1", "1", "Ya", "17 Agustus 2024", "1", "Bus", "Hino", "95", "5", "90", "Belum"}, body[3])
	assert.Equal(t, []string{"", "", "", "", "", "", "Total", "95", "5", "90"}, body[4])
	assert.Equal(t, []string{"2", "0", "Ya", "17 Agustus 2024", "", "", "", "", "", "", "Termasuk"}, body[5])
	assert.Equal(t, "0", body[6][7])
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Status: open", statusLabel(quotation.Status{}))
	assert.Equal(t, "Status: open", statusLabel(quotation.Status{Type: quotation.StatusOpen}))
	assert.Equal(t, "Status: win (terkunci)", statusLabel(quotation.Status{Type: quotation.StatusWin}))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "", sanitize(""))
	assert.Equal(t, "Bus", sanitize("Bus"))
	assert.Equal(t, "'+62", sanitize("+62"))
	assert.Equal(t, "'@x", sanitize("@x"))
}
