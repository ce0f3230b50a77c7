package format

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

func TestDate(t *testing.T) {
	assert.Equal(t, "17 Agustus 2024", Date(time.Date(2024, 8, 17, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "5 Januari 2025", Date(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", Date(time.Time{}))
	assert.Equal(t, "", DatePtr(nil))
}

func TestContactGender(t *testing.T) {
	cases := map[string]string{
		"male":    "Bapak",
		"MALE":    "Bapak",
		"Female":  "Ibu",
		"":        "",
		"unknown": "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, ContactGender(in), "gender %q", in)
	}
}

func TestPrice(t *testing.T) {
	assert.Equal(t, "Rp 0", Price(decimal.Zero))
	assert.Equal(t, "Rp 0", Price(decimal.Decimal{}))
	assert.Equal(t, "Rp 1.234.567", Price(decimal.NewFromInt(1234567)))
	assert.Equal(t, "Rp 95.000.000", Price(decimal.NewFromInt(95000000)))
	assert.Equal(t, "Rp 1.000", Price(decimal.RequireFromString("999.5")))
}

func TestPhoneNumbers(t *testing.T) {
	got := PhoneNumbers([]quotation.PhoneNumber{
		{Label: "Kantor", Value: "021-555"},
		{Label: "", Value: "0812"},
		{Label: "HP", Value: "0813-111"},
		{Label: "Fax", Value: " "},
	})
	assert.Equal(t, "Kantor : 021-555\nHP : 0813-111", got)
	assert.Equal(t, "", PhoneNumbers(nil))
}

func TestFileSize(t *testing.T) {
	assert.Equal(t, "0 Bytes", FileSize(0))
	assert.Equal(t, "512 Bytes", FileSize(512))
	assert.Equal(t, "1 KB", FileSize(1024))
	assert.Equal(t, "1.5 KB", FileSize(1536))
	assert.Equal(t, "1 MB", FileSize(1<<20))
	assert.Equal(t, "2.25 GB", FileSize(int64(2.25*float64(1<<30))))
}

func TestNotesIncludedPPN(t *testing.T) {
	got := Notes([]int{0}, false)
	require.True(t, strings.HasPrefix(got, "     -   Harga tersebut diatas Sudah Termasuk PPN 11%"))
	assert.NotContains(t, got, "Belum Termasuk")
}

func TestNotesExcludedPPNHasTwoDisclosures(t *testing.T) {
	got := Notes(nil, true)
	assert.True(t, strings.HasPrefix(got, NoteBullet+ppnExcluded))
	assert.Equal(t, 2, strings.Count(got, NoteBullet))
}

func TestNotesIgnoresUnknownAndRepeatedIndices(t *testing.T) {
	got := Notes([]int{3, 9, -1, 3}, false)
	assert.Equal(t, 2, strings.Count(got, NoteBullet))
	assert.Contains(t, got, "STNK")
}

func TestNotesWrappingForAllSelections(t *testing.T) {
	for mask := 0; mask < 1<<len(Boilerplate); mask++ {
		var selected []int
		var sources []string
		for i := range Boilerplate {
			if mask&(1<<i) != 0 {
				selected = append(selected, i)
				sources = append(sources, Boilerplate[i])
			}
		}
		for _, exclude := range []bool{false, true} {
			out := Notes(selected, exclude)
			for _, line := range strings.Split(out, "\n") {
				require.LessOrEqual(t, utf8.RuneCountInString(line), NoteLineWidth, "line too long: %q", line)
				if strings.HasPrefix(line, NoteBullet) {
					continue
				}
				require.True(t, strings.HasPrefix(line, noteIndent), "continuation not aligned: %q", line)
				require.NotEqual(t, ' ', rune(line[len(noteIndent)]), "continuation over-indented: %q", line)
			}

			disclosure := []string{ppnIncluded}
			if exclude {
				disclosure = []string{ppnExcluded, ppnVariable}
			}
			wantWords := strings.Fields(strings.Join(append(disclosure, sources...), " "))
			gotWords := make([]string, 0, len(wantWords))
			for _, w := range strings.Fields(out) {
				if w == "-" {
					continue
				}
				gotWords = append(gotWords, w)
			}
			require.Equal(t, wantWords, gotWords, "words split or reordered for mask %d", mask)
		}
	}
}

func TestWrapNoteKeepsLongWordWhole(t *testing.T) {
	long := strings.Repeat("x", 120)
	got := WrapNote("awal " + long + " akhir")
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, noteIndent+long, lines[1])
	assert.Equal(t, noteIndent+"akhir", lines[2])
}
