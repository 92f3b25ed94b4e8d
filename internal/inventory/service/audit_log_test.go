package service_test

import (
	"context"
	"testing"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntry(targetID, result string) *repository.SensitiveReadLog {
	return &repository.SensitiveReadLog{
		ActorUID:       "u-alice",
		ActorRole:      "admin",
		TargetType:     repository.TargetTransaction,
		TargetID:       targetID,
		FieldsAccessed: []string{"recipient_name"},
		UIContext:      "api",
		Result:         result,
	}
}

func TestAuditLog_SensitiveReadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		mod   func(e *repository.SensitiveReadLog)
		field string
	}{
		{"actor", func(e *repository.SensitiveReadLog) { e.ActorUID = "" }, "actor_uid"},
		{"role", func(e *repository.SensitiveReadLog) { e.ActorRole = "" }, "actor_role"},
		{"target type", func(e *repository.SensitiveReadLog) { e.TargetType = "lot" }, "target_type"},
		{"target id", func(e *repository.SensitiveReadLog) { e.TargetID = "" }, "target_id"},
		{"result", func(e *repository.SensitiveReadLog) { e.Result = "maybe" }, "result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := readEntry("t1", repository.ReadSuccess)
			tt.mod(e)
			_, err := f.audit.LogSensitiveRead(ctx, e)
			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestAuditLog_ReadLogsByTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.audit.LogSensitiveRead(ctx, readEntry("t1", repository.ReadSuccess))
	require.NoError(t, err)
	second, err := f.audit.LogSensitiveRead(ctx, readEntry("t1", repository.ReadDenied))
	require.NoError(t, err)
	_, err = f.audit.LogSensitiveRead(ctx, readEntry("t2", repository.ReadSuccess))
	require.NoError(t, err)

	logs, err := f.audit.ReadLogsByTarget(ctx, repository.TargetTransaction, "t1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second, logs[0].ID)
	assert.Equal(t, first, logs[1].ID)

	denied, err := f.audit.QuerySensitiveReads(ctx, repository.AuditFilter{Outcome: repository.ReadDenied})
	require.NoError(t, err)
	assert.Len(t, denied, 1)

	_, err = f.audit.ReadLogsByTarget(ctx, repository.TargetTransaction, "")
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestAuditLog_LabelPrintValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry := func() *repository.LabelPrintLog {
		return &repository.LabelPrintLog{
			ActorUID:     "u-alice",
			ActorRole:    "warehouse",
			Action:       repository.LabelRevoke,
			TargetType:   repository.LabelTargetLot,
			TargetIDs:    []string{"lot-1"},
			ControlLevel: repository.ControlMedical,
			TemplateID:   "tpl-lot",
		}
	}

	e := entry()
	e.RevokeReason = strPtr("torn")
	_, err := f.audit.LogLabelPrint(ctx, e)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	e = entry()
	e.TargetIDs = nil
	e.RevokeReason = strPtr("label torn off")
	_, err = f.audit.LogLabelPrint(ctx, e)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	e = entry()
	e.Action = "shred"
	_, err = f.audit.LogLabelPrint(ctx, e)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	e = entry()
	e.RevokeReason = strPtr("label torn off")
	id, err := f.audit.LogLabelPrint(ctx, e)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	logs, err := f.audit.QueryLabelPrints(ctx, repository.AuditFilter{TargetID: "lot-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, repository.LabelRevoke, logs[0].Action)
}
