// Package export renders quotation data into spreadsheet form for the sales
// dashboard.
package export

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/quotedoc/internal/docgen/format"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

// SheetName is the worksheet holding the offer rows.
const SheetName = "Penawaran"

// HeaderRow is the row carrying the column titles; data follows it.
const HeaderRow = 4

var headers = []string{"Penawaran", "Revisi", "Terbaru", "Tanggal", "Item", "Karoseri", "Chassis", "Harga", "Diskon", "Netto", "PPN"}

var widths = []float64{11, 8, 9, 20, 6, 28, 28, 18, 16, 18, 10}

// OffersXLSX lists every offer and revision of q, one row per item followed by
// an offer subtotal row. The highest revision of each offer is flagged in the
// Terbaru column.
func OffersXLSX(q quotation.Quotation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thinBorders()})
	if err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{Border: thinBorders(), NumFmt: 3})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thinBorders(), NumFmt: 3})
	if err != nil {
		return nil, fmt.Errorf("create total style: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellValue(SheetName, "A1", sanitize("Quotation "+q.Number))
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)
	_ = f.SetCellValue(SheetName, "A2", sanitize(q.CustomerName))
	_ = f.SetCellValue(SheetName, "A3", "Dibuat: "+format.Date(q.CreatedAt))
	_ = f.SetCellValue(SheetName, "D2", statusLabel(q.Status))
	if q.LastFollowUp != nil {
		_ = f.SetCellValue(SheetName, "D3", "Follow up: "+format.DatePtr(q.LastFollowUp))
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, HeaderRow)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	_ = f.SetCellStyle(SheetName, fmt.Sprintf("A%d", HeaderRow), fmt.Sprintf("%s%d", lastCol, HeaderRow), headerStyle)

	row := HeaderRow + 1
	group := q.OfferGroup()
	for offer := range group.All() {
		ppn := "Termasuk"
		if offer.ExcludePPN {
			ppn = "Belum"
		}
		latest := ""
		if l, ok := group.Latest(offer.OfferNumber); ok && l == offer {
			latest = "Ya"
		}
		start := row
		discountTotal := decimal.Zero
		rows := make([][]any, 0, len(offer.Items)+1)
		for i, item := range offer.Items {
			discount := item.Discount.Amount(item.Price)
			discountTotal = discountTotal.Add(discount)
			rows = append(rows, []any{offer.OfferNumber, offer.RevisionNumber, latest, format.Date(offer.CreatedAt),
				i + 1, sanitize(item.Karoseri), sanitize(item.Chassis),
				item.Price.InexactFloat64(), discount.InexactFloat64(), item.Netto.InexactFloat64(), ppn})
		}
		if len(rows) == 0 {
			rows = append(rows, []any{offer.OfferNumber, offer.RevisionNumber, latest, format.Date(offer.CreatedAt), nil, nil, nil, nil, nil, nil, ppn})
		}
		for _, values := range rows {
			if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), &values); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
		_ = f.SetCellStyle(SheetName, fmt.Sprintf("A%d", start), fmt.Sprintf("%s%d", lastCol, row-1), cellStyle)
		_ = f.SetCellStyle(SheetName, fmt.Sprintf("H%d", start), fmt.Sprintf("J%d", row-1), moneyStyle)

		_ = f.SetCellValue(SheetName, fmt.Sprintf("G%d", row), "Total")
		_ = f.SetCellValue(SheetName, fmt.Sprintf("H%d", row), offer.BaseTotal().InexactFloat64())
		_ = f.SetCellValue(SheetName, fmt.Sprintf("I%d", row), discountTotal.InexactFloat64())
		_ = f.SetCellValue(SheetName, fmt.Sprintf("J%d", row), offer.NetTotal().InexactFloat64())
		_ = f.SetCellStyle(SheetName, fmt.Sprintf("G%d", row), fmt.Sprintf("J%d", row), totalStyle)
		row++
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      HeaderRow,
		TopLeftCell: fmt.Sprintf("A%d", HeaderRow+1),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// statusLabel describes the thread status. Offers of a closed thread can no
// longer be revised.
func statusLabel(st quotation.Status) string {
	label := string(st.Type)
	if label == "" {
		label = string(quotation.StatusOpen)
	}
	label = "Status: " + label
	if st.IsTerminal() {
		label += " (terkunci)"
	}
	return label
}

// sanitize neutralises values a spreadsheet would evaluate as formulas.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: "#000000", Style: 1}
	}
	return borders
}
