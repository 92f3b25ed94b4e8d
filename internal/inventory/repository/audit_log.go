package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
)

// Sensitive read outcomes
const (
	ReadSuccess = "success"
	ReadDenied  = "denied"
)

// Sensitive read target types
const (
	TargetTransaction      = "transaction"
	TargetAssetTransaction = "asset_transaction"
	TargetDonor            = "donor"
)

// Label print actions
const (
	LabelPrint   = "print"
	LabelReprint = "reprint"
	LabelRevoke  = "revoke"
)

// Label target types
const (
	LabelTargetLot   = "lot"
	LabelTargetAsset = "asset"
	LabelTargetBin   = "bin"
)

// SensitiveReadLog records one attempt to read personal data.
// Entries are append-only; the table rejects UPDATE and DELETE.
type SensitiveReadLog struct {
	ID             string         `db:"id" json:"id"`
	ActorUID       string         `db:"actor_uid" json:"actor_uid"`
	ActorRole      string         `db:"actor_role" json:"actor_role"`
	TargetType     string         `db:"target_type" json:"target_type"`
	TargetID       string         `db:"target_id" json:"target_id"`
	FieldsAccessed pq.StringArray `db:"fields_accessed" json:"fields_accessed"`
	UIContext      string         `db:"ui_context" json:"ui_context"`
	ReasonCode     *string        `db:"reason_code" json:"reason_code,omitempty"`
	ReasonText     *string        `db:"reason_text" json:"reason_text,omitempty"`
	Result         string         `db:"result" json:"result"`
	IP             *string        `db:"ip" json:"ip,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// LabelPrintLog records one print, reprint or revoke of labels
type LabelPrintLog struct {
	ID           string         `db:"id" json:"id"`
	ActorUID     string         `db:"actor_uid" json:"actor_uid"`
	ActorRole    string         `db:"actor_role" json:"actor_role"`
	Action       string         `db:"action" json:"action"`
	TargetType   string         `db:"target_type" json:"target_type"`
	TargetIDs    pq.StringArray `db:"target_ids" json:"target_ids"`
	ControlLevel string         `db:"control_level" json:"control_level"`
	TemplateID   string         `db:"template_id" json:"template_id"`
	LabelCount   int            `db:"label_count" json:"label_count"`
	RevokeReason *string        `db:"revoke_reason" json:"revoke_reason,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit queries. Zero values are ignored. Outcome
// matches result for sensitive reads and action for label prints.
type AuditFilter struct {
	ActorUID   string
	TargetType string
	TargetID   string
	Outcome    string
	From       *time.Time
	To         *time.Time
	Limit      uint
}

// AuditLogRepository persists the governance audit tables.
// It only ever inserts, and always through the root connection: an audit
// row must outlive a rollback of the operation it describes.
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// InsertSensitiveRead appends a sensitive read entry
func (r *AuditLogRepository) InsertSensitiveRead(ctx context.Context, e *SensitiveReadLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.FieldsAccessed == nil {
		e.FieldsAccessed = pq.StringArray{}
	}

	query := `
		INSERT INTO sensitive_read_logs (
			id, actor_uid, actor_role, target_type, target_id, fields_accessed,
			ui_context, reason_code, reason_text, result, ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.db.Root().QueryRowxContext(ctx, query,
		e.ID, e.ActorUID, e.ActorRole, e.TargetType, e.TargetID, e.FieldsAccessed,
		e.UIContext, e.ReasonCode, e.ReasonText, e.Result, e.IP,
	).Scan(&e.CreatedAt)
	return database.Map(err)
}

// InsertLabelPrint appends a label print entry
func (r *AuditLogRepository) InsertLabelPrint(ctx context.Context, e *LabelPrintLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	query := `
		INSERT INTO label_print_logs (
			id, actor_uid, actor_role, action, target_type, target_ids,
			control_level, template_id, label_count, revoke_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.Root().QueryRowxContext(ctx, query,
		e.ID, e.ActorUID, e.ActorRole, e.Action, e.TargetType, e.TargetIDs,
		e.ControlLevel, e.TemplateID, e.LabelCount, e.RevokeReason,
	).Scan(&e.CreatedAt)
	return database.Map(err)
}

// QuerySensitiveReads lists sensitive read entries newest first
func (r *AuditLogRepository) QuerySensitiveReads(ctx context.Context, f AuditFilter) ([]*SensitiveReadLog, error) {
	ds := applyAuditFilter(database.Dialect.From("sensitive_read_logs"), f, "result")
	if f.TargetID != "" {
		ds = ds.Where(goqu.C("target_id").Eq(f.TargetID))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var entries []*SensitiveReadLog
	if err := r.db.Root().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// QueryLabelPrints lists label print entries newest first
func (r *AuditLogRepository) QueryLabelPrints(ctx context.Context, f AuditFilter) ([]*LabelPrintLog, error) {
	ds := applyAuditFilter(database.Dialect.From("label_print_logs"), f, "action")
	if f.TargetID != "" {
		ds = ds.Where(goqu.L("? = ANY(target_ids)", f.TargetID))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var entries []*LabelPrintLog
	if err := r.db.Root().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

func applyAuditFilter(ds *goqu.SelectDataset, f AuditFilter, outcomeColumn string) *goqu.SelectDataset {
	if f.ActorUID != "" {
		ds = ds.Where(goqu.C("actor_uid").Eq(f.ActorUID))
	}
	if f.TargetType != "" {
		ds = ds.Where(goqu.C("target_type").Eq(f.TargetType))
	}
	if f.Outcome != "" {
		ds = ds.Where(goqu.C(outcomeColumn).Eq(f.Outcome))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("created_at").Lt(*f.To))
	}
	return ds.Order(goqu.C("created_at").Desc()).Limit(limitOrDefault(f.Limit))
}
