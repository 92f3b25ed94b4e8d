package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// LabelTemplate describes label geometry. Templates are seeded by
// migration and read-only at runtime.
type LabelTemplate struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	TargetTypes   pq.StringArray  `db:"target_types" json:"target_types"`
	ControlLevels pq.StringArray  `db:"control_levels" json:"control_levels"`
	Width         int             `db:"width" json:"width"`
	Height        int             `db:"height" json:"height"`
	LayoutConfig  types.JSONText  `db:"layout_config" json:"layout_config"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Supports reports whether the template may be used for the given target
// type and control level.
func (t *LabelTemplate) Supports(targetType, controlLevel string) bool {
	return contains(t.TargetTypes, targetType) && contains(t.ControlLevels, controlLevel)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// LabelTemplateRepository reads label templates
type LabelTemplateRepository struct {
	db *database.DB
}

// NewLabelTemplateRepository creates a new label template repository
func NewLabelTemplateRepository(db *database.DB) *LabelTemplateRepository {
	return &LabelTemplateRepository{db: db}
}

// GetByID gets an active template by ID
func (r *LabelTemplateRepository) GetByID(ctx context.Context, id string) (*LabelTemplate, error) {
	var t LabelTemplate
	query := `SELECT * FROM label_templates WHERE id = $1 AND is_active = true`
	if err := r.db.Q(ctx).GetContext(ctx, &t, query, id); err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFound("label template")
		}
		return nil, err
	}
	return &t, nil
}

// List lists active templates by name
func (r *LabelTemplateRepository) List(ctx context.Context) ([]*LabelTemplate, error) {
	var templates []*LabelTemplate
	query := `SELECT * FROM label_templates WHERE is_active = true ORDER BY name`
	if err := r.db.Q(ctx).SelectContext(ctx, &templates, query); err != nil {
		return nil, err
	}
	return templates, nil
}
