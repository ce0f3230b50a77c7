package docgen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

const (
	itemIndent         = 10
	simpleSpecIndent   = 28
	complexTableIndent = 10
	columnGap          = "  "
	nbsp               = "\u00a0"
)

// BuildItemText renders offer items as one fixed-width block. The layout is
// bound into a single template field and is not reflowed by the renderer.
func BuildItemText(items []quotation.OfferItem) string {
	blocks := make([]string, 0, len(items))
	for i, item := range items {
		blocks = append(blocks, itemBlock(i, item))
	}
	return strings.Join(blocks, "\n\n")
}

func itemBlock(index int, item quotation.OfferItem) string {
	indent := ""
	if index > 0 {
		indent = strings.Repeat(" ", itemIndent)
	}
	lines := []string{
		fmt.Sprintf("%s%d. Karoseri     : %s", indent, index+1, item.Karoseri),
		indent + "Chassis         : " + item.Chassis,
	}

	drawingIndent := simpleSpecIndent
	if item.SpecificationMode == quotation.SpecificationComplex {
		drawingIndent = complexTableIndent
		if len(item.Specifications) > 0 {
			lines = append(lines, indent+"Spesifikasi:")
			lines = append(lines, specTable(item.Specifications)...)
		}
	} else if len(item.Specifications) > 0 {
		for i, spec := range item.Specifications {
			if i == 0 {
				lines = append(lines, indent+"Spesifikasi     : "+spec.String())
				continue
			}
			lines = append(lines, strings.Repeat(" ", simpleSpecIndent)+spec.String())
		}
	}

	if item.Drawing != nil && item.Drawing.DrawingNumber != "" {
		lines = append(lines, strings.Repeat(" ", drawingIndent)+"Spesifikasi lain sesuai gambar "+item.Drawing.DrawingNumber)
	}
	return strings.Join(lines, "\n")
}

// specCell is one table cell. Headers and free text have no label column.
type specCell struct {
	label    string
	value    string
	freeText bool
}

func specCells(entries []quotation.SpecificationEntry) []specCell {
	cells := make([]specCell, 0, len(entries))
	for _, entry := range entries {
		switch entry.Kind {
		case quotation.SpecLabelValue:
			cells = append(cells, specCell{label: entry.Label, value: entry.Value})
		case quotation.SpecCategorized:
			cells = append(cells, specCell{value: entry.Category + ":", freeText: true})
			for _, item := range entry.Items {
				cells = append(cells, specCell{label: item.Name, value: item.Specification})
			}
		default:
			cells = append(cells, specCell{value: entry.Text, freeText: true})
		}
	}
	return cells
}

// specTable lays specifications out as two borderless columns. The left
// column takes ceil(n/2) cells; each column pads labels to its own widest
// label and every left cell to a common width.
func specTable(entries []quotation.SpecificationEntry) []string {
	cells := specCells(entries)
	if len(cells) == 0 {
		return nil
	}
	split := (len(cells) + 1) / 2
	left := columnText(cells[:split])
	right := columnText(cells[split:])

	leftWidth := 0
	for _, text := range left {
		leftWidth = max(leftWidth, utf8.RuneCountInString(text))
	}
	prefix := strings.Repeat(" ", complexTableIndent)
	rows := make([]string, 0, len(left))
	for i, text := range left {
		row := prefix + padRight(text, leftWidth)
		if i < len(right) {
			row += columnGap + right[i]
		}
		rows = append(rows, strings.ReplaceAll(row, " ", nbsp))
	}
	return rows
}

func columnText(cells []specCell) []string {
	labelWidth := 0
	for _, cell := range cells {
		if !cell.freeText {
			labelWidth = max(labelWidth, utf8.RuneCountInString(cell.label))
		}
	}
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		if cell.freeText {
			out = append(out, cell.value)
			continue
		}
		out = append(out, padRight(cell.label, labelWidth)+" : "+cell.value)
	}
	return out
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
