package docgen

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

func simpleItem(karoseri, chassis string, specs ...string) quotation.OfferItem {
	entries := make([]quotation.SpecificationEntry, 0, len(specs))
	for _, s := range specs {
		entries = append(entries, quotation.SimpleSpec(s))
	}
	return quotation.OfferItem{
		Karoseri:          karoseri,
		Chassis:           chassis,
		Specifications:    entries,
		SpecificationMode: quotation.SpecificationSimple,
		Price:             decimal.NewFromInt(100_000_000),
		Netto:             decimal.NewFromInt(95_000_000),
	}
}

func TestBuildItemTextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildItemText(nil))
}

func TestBuildItemTextSimpleLayout(t *testing.T) {
	first := simpleItem("Bus", "Hino", "AC unit", "Kursi 40 seat")
	first.Drawing = &quotation.DrawingSpecification{DrawingNumber: "DRW-01"}
	second := simpleItem("Dump Truck", "Isuzu")

	got := BuildItemText([]quotation.OfferItem{first, second})
	want := "1. Karoseri     : Bus\n" +
		"Chassis         : Hino\n" +
		"Spesifikasi     : AC unit\n" +
		strings.Repeat(" ", 28) + "Kursi 40 seat\n" +
		strings.Repeat(" ", 28) + "Spesifikasi lain sesuai gambar DRW-01\n" +
		"\n" +
		strings.Repeat(" ", 10) + "2. Karoseri     : Dump Truck\n" +
		strings.Repeat(" ", 10) + "Chassis         : Isuzu"
	assert.Equal(t, want, got)
}

func TestBuildItemTextIndentsEveryItemAfterTheFirst(t *testing.T) {
	items := []quotation.OfferItem{
		simpleItem("A", "a", "x"),
		simpleItem("B", "b", "y"),
		simpleItem("C", "c"),
	}
	blocks := strings.Split(BuildItemText(items), "\n\n")
	require.Len(t, blocks, 3)
	assert.True(t, strings.HasPrefix(blocks[0], "1. Karoseri"))
	for i, block := range blocks[1:] {
		first := strings.SplitN(block, "\n", 2)[0]
		assert.Equal(t, strings.Repeat(" ", 10), first[:10], "item %d", i+2)
		assert.NotEqual(t, ' ', first[10])
	}
}

func TestBuildItemTextIsIdempotent(t *testing.T) {
	items := []quotation.OfferItem{
		simpleItem("A", "a", "x", "y"),
		{
			Karoseri:          "B",
			Chassis:           "b",
			SpecificationMode: quotation.SpecificationComplex,
			Specifications: []quotation.SpecificationEntry{
				quotation.LabelValueSpec("Panjang", "6 m"),
				quotation.LabelValueSpec("Lebar", "2 m"),
				quotation.LabelValueSpec("Tinggi", "2.2 m"),
			},
		},
	}
	assert.Equal(t, BuildItemText(items), BuildItemText(items))
}

func TestBuildItemTextComplexTable(t *testing.T) {
	item := quotation.OfferItem{
		Karoseri:          "Box Besi",
		Chassis:           "Mitsubishi",
		SpecificationMode: quotation.SpecificationComplex,
		Drawing:           &quotation.DrawingSpecification{DrawingNumber: "DRW-9"},
		Specifications: []quotation.SpecificationEntry{
			quotation.LabelValueSpec("Panjang", "6 m"),
			quotation.LabelValueSpec("Lantai", "Plat 3 mm"),
			quotation.LabelValueSpec("Cat", "Duco"),
		},
	}
	lines := strings.Split(BuildItemText([]quotation.OfferItem{item}), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Spesifikasi:", lines[2])

	n := func(s string) string { return strings.ReplaceAll(s, " ", "\u00a0") }
	assert.Equal(t, n(strings.Repeat(" ", 10)+"Panjang : 6 m      "+"  "+"Cat : Duco"), lines[3])
	assert.Equal(t, n(strings.Repeat(" ", 10)+"Lantai  : Plat 3 mm"), lines[4])
	assert.NotContains(t, lines[3], " ")
	assert.Equal(t, strings.Repeat(" ", 10)+"Spesifikasi lain sesuai gambar DRW-9", lines[5])
}

func TestBuildItemTextComplexCategorized(t *testing.T) {
	item := quotation.OfferItem{
		Karoseri:          "Wing Box",
		Chassis:           "Hino",
		SpecificationMode: quotation.SpecificationComplex,
		Specifications: []quotation.SpecificationEntry{
			quotation.CategorizedSpec("Rangka",
				quotation.CategoryItem{Name: "Main frame", Specification: "UNP 150"},
				quotation.CategoryItem{Name: "Cross member", Specification: "CNP 100"},
			),
		},
	}
	text := BuildItemText([]quotation.OfferItem{item})
	assert.Contains(t, text, "Rangka:")
	assert.Contains(t, text, "Cross\u00a0member\u00a0:\u00a0CNP\u00a0100")
}

func TestBuildItemTextEmptySpecifications(t *testing.T) {
	for _, mode := range []quotation.SpecificationMode{quotation.SpecificationSimple, quotation.SpecificationComplex} {
		item := quotation.OfferItem{Karoseri: "Tangki", Chassis: "UD", SpecificationMode: mode}
		assert.Equal(t, "1. Karoseri     : Tangki\nChassis         : UD", BuildItemText([]quotation.OfferItem{item}))
	}
}

// Left cells share one width for any mix of label lengths, so the right
// column always starts at the same offset.
func TestBuildItemTextComplexColumnsAlign(t *testing.T) {
	for n := 1; n <= 9; n++ {
		for seed := 0; seed < 20; seed++ {
			specs := make([]quotation.SpecificationEntry, n)
			split := (n + 1) / 2
			for i := range specs {
				length := (seed*31 + i*17 + n*7) % 51
				if i < split {
					specs[i] = quotation.LabelValueSpec(strings.Repeat("L", length), "v")
				} else {
					specs[i] = quotation.LabelValueSpec("#"+strings.Repeat("R", length), "w")
				}
			}
			item := quotation.OfferItem{SpecificationMode: quotation.SpecificationComplex, Specifications: specs}
			rows := strings.Split(BuildItemText([]quotation.OfferItem{item}), "\n")[3:]
			require.Len(t, rows, split)

			rightStart := -1
			for i, row := range rows {
				runes := []rune(row)
				pos := -1
				for j, r := range runes {
					if r == '#' {
						pos = j
						break
					}
				}
				if i >= n-split {
					assert.Equal(t, -1, pos)
					if rightStart >= 0 {
						assert.Equal(t, rightStart-2, utf8.RuneCountInString(row))
					}
					continue
				}
				if rightStart < 0 {
					rightStart = pos
				}
				assert.Equal(t, rightStart, pos, "n=%d seed=%d row=%d", n, seed, i)
			}
		}
	}
}
