// Package format holds the pure field formatters used when filling the
// quotation template. Output is laid out for a fixed-width template that does
// not reflow text, so widths and paddings here are exact.
package format

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

const (
	// NoteLineWidth is the maximum rune width of a wrapped note line.
	NoteLineWidth = 100
	// NoteBullet prefixes the first line of every note.
	NoteBullet = "     -   "
)

// noteIndent aligns continuation lines under the first word after NoteBullet.
var noteIndent = strings.Repeat(" ", utf8.RuneCountInString(NoteBullet))

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// Date renders t in long Indonesian form, e.g. "17 Agustus 2024".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// DatePtr is Date for optional timestamps.
func DatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Date(*t)
}

// ContactGender maps a gender to its honorific. Unknown values pass through.
func ContactGender(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case string(quotation.GenderMale):
		return "Bapak"
	case string(quotation.GenderFemale):
		return "Ibu"
	default:
		return gender
	}
}

// Price renders a rupiah amount with Indonesian grouping and no decimals.
func Price(amount decimal.Decimal) string {
	p := message.NewPrinter(language.Indonesian)
	rounded := amount.Round(0)
	if rounded.IsNegative() {
		return "-Rp " + p.Sprintf("%d", rounded.Neg().IntPart())
	}
	return "Rp " + p.Sprintf("%d", rounded.IntPart())
}

// PhoneNumbers renders "label : value" lines, skipping incomplete entries.
func PhoneNumbers(numbers []quotation.PhoneNumber) string {
	lines := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if strings.TrimSpace(n.Label) == "" || strings.TrimSpace(n.Value) == "" {
			continue
		}
		lines = append(lines, n.Label+" : "+n.Value)
	}
	return strings.Join(lines, "\n")
}

// FileSize renders a byte count in base-1024 units with up to two decimals.
func FileSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(size)
	exp := 0
	for value >= 1024 && exp < len(units)-1 {
		value /= 1024
		exp++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[exp]
}

const (
	ppnIncluded = "Harga tersebut diatas Sudah Termasuk PPN 11%"
	ppnExcluded = "Harga tersebut diatas Belum Termasuk PPN 11%"
	ppnVariable = "Besaran PPN dapat berubah sewaktu-waktu menyesuaikan dengan ketentuan perpajakan yang berlaku pada saat faktur pajak diterbitkan"
)

// Boilerplate holds the selectable quotation notes, addressed by index.
var Boilerplate = [...]string{
	"Harga berlaku selama 30 (tiga puluh) hari kalender terhitung sejak tanggal surat penawaran ini diterbitkan dan dapat berubah sewaktu-waktu tanpa pemberitahuan terlebih dahulu",
	"Pembayaran: uang muka sebesar 30% pada saat Purchase Order diterbitkan, sisa pembayaran sebesar 70% dilunasi sebelum unit diserahterimakan kepada pembeli",
	"Waktu pengerjaan karoseri kurang lebih 45 (empat puluh lima) hari kerja setelah chassis dan uang muka kami terima",
	"Harga belum termasuk biaya pengurusan STNK, BPKB, KIR dan biaya pengiriman unit ke lokasi pembeli",
	"Garansi karoseri selama 12 (dua belas) bulan untuk konstruksi dan 6 (enam) bulan untuk kelistrikan terhitung sejak tanggal serah terima unit",
	"Gambar dan spesifikasi dapat berubah menyesuaikan dengan kondisi chassis dan peraturan yang berlaku",
}

// Notes builds the PPN disclosure followed by the selected boilerplate notes.
// Notes are emitted in boilerplate order; unknown and repeated indices are
// ignored.
func Notes(selected []int, excludePPN bool) string {
	blocks := make([]string, 0, len(Boilerplate)+2)
	if excludePPN {
		blocks = append(blocks, WrapNote(ppnExcluded), WrapNote(ppnVariable))
	} else {
		blocks = append(blocks, WrapNote(ppnIncluded))
	}
	indices := append([]int(nil), selected...)
	sort.Ints(indices)
	last := -1
	for _, idx := range indices {
		if idx < 0 || idx >= len(Boilerplate) || idx == last {
			continue
		}
		last = idx
		blocks = append(blocks, WrapNote(Boilerplate[idx]))
	}
	return strings.Join(blocks, "\n")
}

// WrapNote word-wraps text behind NoteBullet so that no line exceeds
// NoteLineWidth. Words are never split; a single word longer than the
// available width is placed alone on its line.
func WrapNote(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return strings.TrimRight(NoteBullet, " ")
	}
	lines := make([]string, 0, 2)
	line := NoteBullet + words[0]
	width := utf8.RuneCountInString(line)
	for _, word := range words[1:] {
		wordWidth := utf8.RuneCountInString(word)
		if width+1+wordWidth > NoteLineWidth {
			lines = append(lines, line)
			line = noteIndent + word
			width = utf8.RuneCountInString(line)
			continue
		}
		line += " " + word
		width += 1 + wordWidth
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}
