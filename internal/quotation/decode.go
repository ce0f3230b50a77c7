package quotation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decode parses a quotation document as returned by the backend and checks
// the status invariants.
func Decode(raw []byte) (Quotation, error) {
	var q Quotation
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quotation{}, fmt.Errorf("decode quotation: %w", err)
	}
	if err := q.Status.Validate(); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func isJSONString(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

// UnmarshalJSON accepts either a bare status string or a status object.
func (s *Status) UnmarshalJSON(raw []byte) error {
	if isJSONString(raw) {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		*s = Status{Type: StatusType(value)}
		return nil
	}
	type alias Status
	var out alias
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	*s = Status(out)
	return nil
}

// UnmarshalJSON accepts either a bare image id or a populated image object.
func (n *NotesImage) UnmarshalJSON(raw []byte) error {
	if isJSONString(raw) {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return err
		}
		*n = NotesImage{ID: id}
		return nil
	}
	var obj struct {
		ID   string        `json:"_id"`
		File *AttachedFile `json:"imageFile"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("decode notes image: %w", err)
	}
	*n = NotesImage{ID: obj.ID, File: obj.File}
	return nil
}

// UnmarshalJSON resolves the three specification shapes into a tagged entry.
func (e *SpecificationEntry) UnmarshalJSON(raw []byte) error {
	if isJSONString(raw) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		*e = SimpleSpec(text)
		return nil
	}
	var obj struct {
		Label    *string        `json:"label"`
		Value    string         `json:"value"`
		Category *string        `json:"category"`
		Items    []CategoryItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("decode specification: %w", err)
	}
	switch {
	case obj.Category != nil:
		*e = CategorizedSpec(*obj.Category, obj.Items...)
	case obj.Label != nil:
		*e = LabelValueSpec(*obj.Label, obj.Value)
	default:
		return fmt.Errorf("decode specification: unknown shape %s", string(raw))
	}
	return nil
}

// UnmarshalJSON maps the flat backend item payload, including the split
// discount fields, onto OfferItem.
func (i *OfferItem) UnmarshalJSON(raw []byte) error {
	var obj struct {
		ID                string                `json:"_id"`
		Karoseri          string                `json:"karoseri"`
		Chassis           string                `json:"chassis"`
		Drawing           *DrawingSpecification `json:"drawingSpecification"`
		Specifications    []SpecificationEntry  `json:"specifications"`
		SpecificationMode SpecificationMode     `json:"specificationMode"`
		Price             decimal.Decimal       `json:"price"`
		Discount          decimal.Decimal       `json:"discount"`
		DiscountType      DiscountType          `json:"discountType"`
		Netto             decimal.Decimal       `json:"netto"`
		Notes             string                `json:"notes"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("decode offer item: %w", err)
	}
	mode := obj.SpecificationMode
	if mode != SpecificationComplex {
		mode = SpecificationSimple
	}
	discountType := obj.DiscountType
	if discountType != DiscountAmount {
		discountType = DiscountPercentage
	}
	*i = OfferItem{
		ID:                obj.ID,
		Karoseri:          obj.Karoseri,
		Chassis:           obj.Chassis,
		Drawing:           obj.Drawing,
		Specifications:    obj.Specifications,
		SpecificationMode: mode,
		Price:             obj.Price,
		Discount:          Discount{Type: discountType, Value: obj.Discount},
		Netto:             obj.Netto,
		Notes:             obj.Notes,
	}
	return nil
}
