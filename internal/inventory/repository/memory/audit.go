package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Audit returns the audit log repository view
func (s *Store) Audit() *Audit { return &Audit{s} }

type Audit struct{ s *Store }

func (r *Audit) InsertSensitiveRead(_ context.Context, e *repository.SensitiveReadLog) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.FieldsAccessed == nil {
		e.FieldsAccessed = pq.StringArray{}
	}
	e.CreatedAt = r.s.tick()

	r.s.auditMu.Lock()
	defer r.s.auditMu.Unlock()
	entry := *e
	entry.FieldsAccessed = append(pq.StringArray{}, e.FieldsAccessed...)
	r.s.sensitiveReads = append(r.s.sensitiveReads, entry)
	return nil
}

func (r *Audit) InsertLabelPrint(_ context.Context, e *repository.LabelPrintLog) error {
	if e.Action == repository.LabelRevoke && (e.RevokeReason == nil || len([]rune(*e.RevokeReason)) < 5) {
		return errors.BadRequest("data validation failed: label_print_logs_revoke_reason")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = r.s.tick()

	r.s.auditMu.Lock()
	defer r.s.auditMu.Unlock()
	entry := *e
	entry.TargetIDs = append(pq.StringArray{}, e.TargetIDs...)
	r.s.labelPrints = append(r.s.labelPrints, entry)
	return nil
}

func (r *Audit) QuerySensitiveReads(_ context.Context, f repository.AuditFilter) ([]*repository.SensitiveReadLog, error) {
	r.s.auditMu.Lock()
	defer r.s.auditMu.Unlock()

	var out []*repository.SensitiveReadLog
	for _, e := range r.s.sensitiveReads {
		if f.ActorUID != "" && e.ActorUID != f.ActorUID ||
			f.TargetType != "" && e.TargetType != f.TargetType ||
			f.TargetID != "" && e.TargetID != f.TargetID ||
			f.Outcome != "" && e.Result != f.Outcome ||
			!inRange(e.CreatedAt, f.From, f.To) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sortByCreatedDesc(out,
		func(e *repository.SensitiveReadLog) time.Time { return e.CreatedAt },
		func(e *repository.SensitiveReadLog) string { return e.ID })
	return limit(out, f.Limit), nil
}

func (r *Audit) QueryLabelPrints(_ context.Context, f repository.AuditFilter) ([]*repository.LabelPrintLog, error) {
	r.s.auditMu.Lock()
	defer r.s.auditMu.Unlock()

	var out []*repository.LabelPrintLog
	for _, e := range r.s.labelPrints {
		if f.ActorUID != "" && e.ActorUID != f.ActorUID ||
			f.TargetType != "" && e.TargetType != f.TargetType ||
			f.TargetID != "" && !containsID(e.TargetIDs, f.TargetID) ||
			f.Outcome != "" && e.Action != f.Outcome ||
			!inRange(e.CreatedAt, f.From, f.To) {
			continue
		}
		e := e
		out = append(out, &e)
	}
	sortByCreatedDesc(out,
		func(e *repository.LabelPrintLog) time.Time { return e.CreatedAt },
		func(e *repository.LabelPrintLog) string { return e.ID })
	return limit(out, f.Limit), nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Templates returns the label template repository view
func (s *Store) Templates() *Templates { return &Templates{s} }

type Templates struct{ s *Store }

// Seed adds a template, standing in for the seed migration
func (r *Templates) Seed(t repository.LabelTemplate) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.LayoutConfig == nil {
		t.LayoutConfig, _ = json.Marshal(map[string]any{})
	}
	t.IsActive = true
	t.CreatedAt = r.s.tick()
	_ = r.s.write(context.Background(), func(st *state) error {
		st.templates[t.ID] = t
		return nil
	})
}

func (r *Templates) GetByID(ctx context.Context, id string) (*repository.LabelTemplate, error) {
	var out *repository.LabelTemplate
	err := r.s.read(ctx, func(st *state) error {
		t, ok := st.templates[id]
		if !ok || !t.IsActive {
			return errors.NotFound("label template")
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *Templates) List(ctx context.Context) ([]*repository.LabelTemplate, error) {
	var out []*repository.LabelTemplate
	err := r.s.read(ctx, func(st *state) error {
		for _, t := range st.templates {
			if t.IsActive {
				t := t
				out = append(out, &t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
