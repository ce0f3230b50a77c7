package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// rowQuerier is the subset of pgxpool.Pool used by the repository.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository reads quotations mirrored into Postgres. Nested structures
// (contact, status, progress, offers) live in JSONB columns.
type PGRepository struct {
	db rowQuerier
}

// NewPGRepository constructs a repository on top of a pool.
func NewPGRepository(db rowQuerier) *PGRepository {
	return &PGRepository{db: db}
}

const getQuotationSQL = `
SELECT id, quotation_number, customer_name, marketing_name,
       contact_person, status, progress, offers,
       created_at, updated_at, last_follow_up
FROM quotations
WHERE id = $1`

// Get loads one quotation by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Quotation, error) {
	var q Quotation
	var contact, status, progress, offers []byte
	var lastFollowUp *time.Time
	err := r.db.QueryRow(ctx, getQuotationSQL, id).Scan(
		&q.ID, &q.Number, &q.CustomerName, &q.MarketingName,
		&contact, &status, &progress, &offers,
		&q.CreatedAt, &q.UpdatedAt, &lastFollowUp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, fmt.Errorf("get quotation: %w", err)
	}
	q.LastFollowUp = lastFollowUp
	if err := unmarshalColumn("contact_person", contact, &q.ContactPerson); err != nil {
		return Quotation{}, err
	}
	if err := unmarshalColumn("status", status, &q.Status); err != nil {
		return Quotation{}, err
	}
	if err := unmarshalColumn("progress", progress, &q.Progress); err != nil {
		return Quotation{}, err
	}
	if err := unmarshalColumn("offers", offers, &q.Offers); err != nil {
		return Quotation{}, err
	}
	if err := q.Status.Validate(); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func unmarshalColumn(name string, raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
