package quotation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by sources when a quotation does not exist.
var ErrNotFound = errors.New("quotation: not found")

// ErrForbidden is returned when the backend refuses the caller's credentials.
var ErrForbidden = errors.New("quotation: access denied")

// ErrInvalidStatus flags a status payload that breaks the status invariants.
var ErrInvalidStatus = errors.New("quotation: invalid status")

// ============================================================================
// HEADER
// ============================================================================

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type PhoneNumber struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type ContactPerson struct {
	Name         string        `json:"name"`
	Gender       Gender        `json:"gender"`
	PhoneNumbers []PhoneNumber `json:"phoneNumbers,omitempty"`
}

type StatusType string

const (
	StatusOpen  StatusType = "open"
	StatusWin   StatusType = "win"
	StatusLoss  StatusType = "loss"
	StatusClose StatusType = "close"
)

// Status is the tagged status of a quotation thread. Only win carries offer
// references; loss and close carry a reason.
type Status struct {
	Type            StatusType `json:"type"`
	ReasonCode      string     `json:"reasonCode,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	SelectedOfferID string     `json:"selectedOfferId,omitempty"`
	SelectedItemIDs []string   `json:"selectedItemIds,omitempty"`
}

// IsTerminal reports whether offers are locked for editing.
func (s Status) IsTerminal() bool {
	return s.Type == StatusWin || s.Type == StatusLoss || s.Type == StatusClose
}

// Validate checks the per-variant invariants.
func (s Status) Validate() error {
	switch s.Type {
	case StatusOpen, "":
		return nil
	case StatusWin:
		if strings.TrimSpace(s.SelectedOfferID) == "" {
			return fmt.Errorf("%w: win requires a winning offer", ErrInvalidStatus)
		}
		return nil
	case StatusLoss, StatusClose:
		if strings.TrimSpace(s.Reason) == "" && strings.TrimSpace(s.ReasonCode) == "" {
			return fmt.Errorf("%w: %s requires a reason", ErrInvalidStatus, s.Type)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, s.Type)
	}
}

// Quotation is one customer quotation thread with all of its offers.
type Quotation struct {
	ID            string        `json:"_id"`
	Number        string        `json:"quotationNumber"`
	CustomerName  string        `json:"customerName"`
	ContactPerson ContactPerson `json:"contactPerson"`
	MarketingName string        `json:"marketingName"`
	Status        Status        `json:"status"`
	Progress      []string      `json:"progress,omitempty"`
	Offers        []Offer       `json:"offers"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	LastFollowUp  *time.Time    `json:"lastFollowUp,omitempty"`
}

// OfferGroup indexes every offer and revision of the quotation.
func (q Quotation) OfferGroup() *OfferGroup {
	return NewOfferGroup(q.Offers)
}

// ============================================================================
// OFFER
// ============================================================================

type Offer struct {
	ID             string          `json:"_id"`
	OfferNumber    int             `json:"offerNumber"`
	RevisionNumber int             `json:"revisionNumber"`
	ParentOfferID  string          `json:"parentOfferId,omitempty"`
	Items          []OfferItem     `json:"items"`
	Notes          string          `json:"notes,omitempty"`
	NotesImages    []NotesImage    `json:"notesImages,omitempty"`
	ExcludePPN     bool            `json:"excludePPN"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	TotalNetto     decimal.Decimal `json:"totalNetto"`
	Revisions      []Offer         `json:"revisions,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// IsRevision reports whether the offer revises an earlier one.
func (o Offer) IsRevision() bool {
	return o.RevisionNumber > 0
}

// NetTotal sums the item net prices. The cached TotalNetto is not trusted.
func (o Offer) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Netto)
	}
	return total
}

// BaseTotal sums the item base prices.
func (o Offer) BaseTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price)
	}
	return total
}

type SpecificationMode string

const (
	SpecificationSimple  SpecificationMode = "simple"
	SpecificationComplex SpecificationMode = "complex"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Amount resolves the discount against a base price.
func (d Discount) Amount(base decimal.Decimal) decimal.Decimal {
	if d.Type == DiscountPercentage {
		return base.Mul(d.Value).Div(decimal.NewFromInt(100))
	}
	return d.Value
}

type OfferItem struct {
	ID                string
	Karoseri          string
	Chassis           string
	Drawing           *DrawingSpecification
	Specifications    []SpecificationEntry
	SpecificationMode SpecificationMode
	Price             decimal.Decimal
	Discount          Discount
	Netto             decimal.Decimal
	Notes             string
}

// HasDrawingFile reports whether the item references an uploaded drawing.
// A drawing without a file id is treated as not yet uploaded.
func (i OfferItem) HasDrawingFile() bool {
	return i.Drawing != nil && i.Drawing.File != nil && i.Drawing.File.FileID != ""
}

type AttachedFile struct {
	FileID       string    `json:"fileId"`
	OriginalName string    `json:"originalName"`
	Type         string    `json:"fileType"`
	Size         int64     `json:"fileSize"`
	UploadDate   time.Time `json:"uploadDate"`
}

// DrawingSpecification is a read-only technical drawing record.
type DrawingSpecification struct {
	ID            string        `json:"_id"`
	DrawingNumber string        `json:"drawingNumber"`
	TruckType     string        `json:"truckType"`
	File          *AttachedFile `json:"drawingFile,omitempty"`
}

// NotesImage is an auxiliary image attached to an offer.
type NotesImage struct {
	ID   string
	File *AttachedFile
}

// ============================================================================
// SPECIFICATIONS
// ============================================================================

type SpecificationKind int

const (
	SpecSimple SpecificationKind = iota
	SpecLabelValue
	SpecCategorized
)

type CategoryItem struct {
	Name          string `json:"name"`
	Specification string `json:"specification"`
}

// SpecificationEntry is one line of an item specification list.
type SpecificationEntry struct {
	Kind     SpecificationKind
	Text     string
	Label    string
	Value    string
	Category string
	Items    []CategoryItem
}

func SimpleSpec(text string) SpecificationEntry {
	return SpecificationEntry{Kind: SpecSimple, Text: text}
}

func LabelValueSpec(label, value string) SpecificationEntry {
	return SpecificationEntry{Kind: SpecLabelValue, Label: label, Value: value}
}

func CategorizedSpec(category string, items ...CategoryItem) SpecificationEntry {
	return SpecificationEntry{Kind: SpecCategorized, Category: category, Items: items}
}

// String renders the entry as a single free-text line.
func (e SpecificationEntry) String() string {
	switch e.Kind {
	case SpecLabelValue:
		return e.Label + " : " + e.Value
	case SpecCategorized:
		parts := make([]string, 0, len(e.Items))
		for _, item := range e.Items {
			parts = append(parts, item.Name+" "+item.Specification)
		}
		if len(parts) == 0 {
			return e.Category
		}
		return e.Category + ": " + strings.Join(parts, ", ")
	default:
		return e.Text
	}
}
