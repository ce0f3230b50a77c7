package docgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedoc/internal/docgen/assets"
	"github.com/odyssey-erp/quotedoc/internal/docgen/docx"
	"github.com/odyssey-erp/quotedoc/internal/docgen/format"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
)

// VATRate is the PPN rate applied to the net total.
var VATRate = decimal.New(11, -2)

// SelectOffer picks the offer to print. An explicit offerID wins; otherwise a
// won quotation prints its winning offer and anything else its first offer.
// Revisions at any depth are searched.
func SelectOffer(q quotation.Quotation, offerID string) (*quotation.Offer, error) {
	group := q.OfferGroup()
	if offerID == "" && q.Status.Type == quotation.StatusWin {
		offerID = q.Status.SelectedOfferID
	}

	var (
		offer *quotation.Offer
		ok    bool
	)
	if offerID != "" {
		offer, ok = group.Resolve(offerID)
		if !ok {
			return nil, &NoOfferError{QuotationNumber: q.Number, OfferID: offerID, Reason: "offer not found"}
		}
	} else {
		offer, ok = group.First()
		if !ok {
			return nil, &NoOfferError{QuotationNumber: q.Number, Reason: "quotation has no offers"}
		}
	}
	if len(offer.Items) == 0 {
		return nil, &NoOfferError{QuotationNumber: q.Number, OfferID: offer.ID, Reason: "offer has no items"}
	}
	return offer, nil
}

// Totals are the offer amounts printed on the document.
type Totals struct {
	Items decimal.Decimal
	Netto decimal.Decimal
	PPN   decimal.Decimal
	Total decimal.Decimal
}

// ComputeTotals derives the amounts from the items. PPN is rounded half away
// from zero to whole rupiah.
func ComputeTotals(offer *quotation.Offer) Totals {
	netto := offer.NetTotal()
	ppn := netto.Mul(VATRate).Round(0)
	return Totals{
		Items: offer.BaseTotal(),
		Netto: netto,
		PPN:   ppn,
		Total: netto.Add(ppn),
	}
}

// FileURLer builds browsable asset URLs.
type FileURLer interface {
	FileURL(kind assets.Kind, ownerID, fileID string) string
}

// AssembleInput carries everything the field map is built from.
type AssembleInput struct {
	Quotation     quotation.Quotation
	Offer         *quotation.Offer
	SelectedNotes []int
	ItemText      string
	Drawings      []assets.FetchedImage
	NotesImages   []assets.FetchedImage
}

// Assembler produces the flat field map bound into the template.
type Assembler struct {
	urls FileURLer
}

// NewAssembler constructs an Assembler. urls may be nil, in which case the
// drawings info omits asset links.
func NewAssembler(urls FileURLer) *Assembler {
	return &Assembler{urls: urls}
}

// Assemble builds the field map.
func (a *Assembler) Assemble(in AssembleInput) map[string]any {
	q, offer := in.Quotation, in.Offer
	totals := ComputeTotals(offer)

	fields := map[string]any{
		"quotation_number": q.Number,
		"quotation_date":   format.Date(q.CreatedAt),
		"customer_name":    q.CustomerName,
		"contact_person":   q.ContactPerson.Name,
		"contact_gender":   format.ContactGender(string(q.ContactPerson.Gender)),
		"contact_phone":    format.PhoneNumbers(q.ContactPerson.PhoneNumbers),
		"marketing_name":   q.MarketingName,
		"offer_number":     strconv.Itoa(offer.OfferNumber),
		"revision_number":  strconv.Itoa(offer.RevisionNumber),
		"is_revision":      offer.IsRevision(),
		"offer_date":       format.Date(offer.CreatedAt),
		"offer_notes":      offer.Notes,
		"exclude_ppn":      offer.ExcludePPN,
		"item":             in.ItemText,
		"total_items":      format.Price(totals.Items),
		"total_netto":      format.Price(totals.Netto),
		"ppn":              format.Price(totals.PPN),
		"total":            format.Price(totals.Total),
		"notes":            format.Notes(in.SelectedNotes, offer.ExcludePPN),
		"signature":        q.MarketingName,
	}

	info := a.drawingsInfo(offer)
	fields["has_drawings"] = info != ""
	if info != "" {
		info = docx.PageBreak + info
	}
	fields["drawings_info"] = info

	n := 0
	images := make([]map[string]any, 0, len(in.Drawings))
	for _, img := range in.Drawings {
		n++
		item := offer.Items[img.Index]
		name := drawingFileName(item)
		embedded := docx.Image{Data: img.Data, Name: name}
		fields["image_"+strconv.Itoa(n)] = embedded
		entry := map[string]any{
			"image":          embedded,
			"image_key":      "image_" + strconv.Itoa(n),
			"karoseri":       item.Karoseri,
			"chassis":        item.Chassis,
			"item_index":     img.Index + 1,
			"drawing_number": "",
			"filename":       name,
		}
		if item.Drawing != nil {
			entry["drawing_number"] = item.Drawing.DrawingNumber
		}
		images = append(images, entry)
	}
	notesImages := make([]map[string]any, 0, len(in.NotesImages))
	for _, img := range in.NotesImages {
		n++
		name := ""
		if img.Index < len(offer.NotesImages) && offer.NotesImages[img.Index].File != nil {
			name = offer.NotesImages[img.Index].File.OriginalName
		}
		embedded := docx.Image{Data: img.Data, Name: name}
		fields["image_"+strconv.Itoa(n)] = embedded
		notesImages = append(notesImages, map[string]any{
			"notes_image": embedded,
			"image_key":   "image_" + strconv.Itoa(n),
			"index":       img.Index + 1,
			"filename":    name,
		})
	}
	fields["images"] = images
	fields["has_images"] = len(images) > 0
	fields["notes_images"] = notesImages
	fields["has_notes_images"] = len(notesImages) > 0
	return fields
}

func drawingFileName(item quotation.OfferItem) string {
	if item.Drawing == nil || item.Drawing.File == nil {
		return ""
	}
	return item.Drawing.File.OriginalName
}

// drawingsInfo lists every item drawing with an uploaded file. It is empty
// when no item has one.
func (a *Assembler) drawingsInfo(offer *quotation.Offer) string {
	var blocks []string
	for i, item := range offer.Items {
		if !item.HasDrawingFile() {
			continue
		}
		d, file := item.Drawing, item.Drawing.File
		lines := []string{
			fmt.Sprintf("Item %d: %s - %s", i+1, item.Karoseri, item.Chassis),
			"Nomor Gambar   : " + d.DrawingNumber,
			"Tipe Truk      : " + d.TruckType,
			"Nama File      : " + file.OriginalName,
			"Tipe File      : " + file.Type,
			"Ukuran File    : " + format.FileSize(file.Size),
			"Tanggal Upload : " + format.Date(file.UploadDate),
		}
		if a.urls != nil {
			lines = append(lines, "URL            : "+a.urls.FileURL(assets.KindDrawing, d.ID, file.FileID))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if len(blocks) == 0 {
		return ""
	}
	header := "INFORMASI GAMBAR TEKNIS\n" + strings.Repeat("=", 23)
	return header + "\n\n" + strings.Join(blocks, "\n\n")
}

// imageRequests lists the images to embed: item drawings in item order, then
// notes images in offer order.
func imageRequests(offer *quotation.Offer) (drawings, notes []assets.ImageRequest) {
	for i, item := range offer.Items {
		if !item.HasDrawingFile() {
			continue
		}
		drawings = append(drawings, assets.ImageRequest{
			Kind:    assets.KindDrawing,
			OwnerID: item.Drawing.ID,
			FileID:  item.Drawing.File.FileID,
			Index:   i,
		})
	}
	for i, img := range offer.NotesImages {
		if img.File == nil || img.File.FileID == "" {
			continue
		}
		notes = append(notes, assets.ImageRequest{
			Kind:    assets.KindNotes,
			OwnerID: img.ID,
			FileID:  img.File.FileID,
			Index:   i,
		})
	}
	return drawings, notes
}
