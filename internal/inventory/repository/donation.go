package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Donation source types
const (
	DonorIndividual   = "individual"
	DonorCorporate    = "corporate"
	DonorOrganization = "organization"
	DonorGovernment   = "government"
)

// DonationSource is a donor whose gifts are booked as donate transactions.
// Contact fields are personal data and only leave the service through the
// sensitive reader.
type DonationSource struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Type          string    `db:"type" json:"type"`
	ContactPerson *string   `db:"contact_person" json:"-"`
	Phone         *string   `db:"phone" json:"-"`
	Email         *string   `db:"email" json:"-"`
	NeedsReceipt  bool      `db:"needs_receipt" json:"needs_receipt"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// DonationRepository handles donation source persistence
type DonationRepository struct {
	db *database.DB
}

// NewDonationRepository creates a new donation source repository
func NewDonationRepository(db *database.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Create inserts a donation source
func (r *DonationRepository) Create(ctx context.Context, d *DonationSource) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}

	query := `
		INSERT INTO donation_sources (id, name, type, contact_person, phone, email, needs_receipt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		d.ID, d.Name, d.Type, d.ContactPerson, d.Phone, d.Email, d.NeedsReceipt,
	).Scan(&d.CreatedAt)
	return database.Map(err)
}

// GetByID gets a donation source by ID
func (r *DonationRepository) GetByID(ctx context.Context, id string) (*DonationSource, error) {
	var d DonationSource
	if err := r.db.Q(ctx).GetContext(ctx, &d, `SELECT * FROM donation_sources WHERE id = $1`, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("donation source")
		}
		return nil, err
	}
	return &d, nil
}

// List lists donation sources by name
func (r *DonationRepository) List(ctx context.Context) ([]*DonationSource, error) {
	var sources []*DonationSource
	if err := r.db.Q(ctx).SelectContext(ctx, &sources, `SELECT * FROM donation_sources ORDER BY name`); err != nil {
		return nil, err
	}
	return sources, nil
}
