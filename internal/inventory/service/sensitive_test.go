package service_test

import (
	"context"
	"testing"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/permissions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issue releases traceable stock through the approval gate with recipient
// details and returns the transaction id
func (f *fixture) issue(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	res := f.resource(t, "Morphine", repository.ControlControlled, 10, 0)
	tx, err := f.approvals.RequestApproval(ctx, service.ApprovalRequest{
		ResourceID:     res.ID,
		Quantity:       2,
		Requester:      alice,
		RecipientName:  "Sam Field",
		RecipientPhone: strPtr("+1 555 0199"),
		RecipientIDNo:  strPtr("ID-4411"),
	})
	require.NoError(t, err)
	_, err = f.approvals.Approve(ctx, tx.ID, bob)
	require.NoError(t, err)
	return tx.ID
}

// loan borrows an asset of the given price and returns the borrow entry id
func (f *fixture) loan(t *testing.T, price int64) string {
	t.Helper()
	ctx := context.Background()
	a := f.asset(t, "LOAN-"+decimal.NewFromInt(price).String(), nil, price)
	_, err := f.assets.Borrow(ctx, a.ID, borrowInput())
	require.NoError(t, err)
	history, err := f.assets.ListTransactions(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	return history[0].ID
}

func (f *fixture) readLogs(t *testing.T, targetType, id string) []*repository.SensitiveReadLog {
	t.Helper()
	logs, err := f.audit.ReadLogsByTarget(context.Background(), targetType, id)
	require.NoError(t, err)
	return logs
}

func TestSensitive_AdminReadsRecipient(t *testing.T) {
	f := newFixture(t)
	txID := f.issue(t)

	data, auditID, err := f.sensitive.Read(context.Background(), admin, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   txID,
		Fields:     []string{"recipient_name", "recipient_org"},
		UIContext:  "dispatch-detail",
		ReasonCode: strPtr("delivery_followup"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sam Field", data["recipient_name"])
	assert.Nil(t, data["recipient_org"])
	assert.NotContains(t, data, "recipient_phone")

	logs := f.readLogs(t, repository.TargetTransaction, txID)
	require.Len(t, logs, 1)
	assert.Equal(t, auditID, logs[0].ID)
	assert.Equal(t, repository.ReadSuccess, logs[0].Result)
	assert.Equal(t, "u-admin", logs[0].ActorUID)
	assert.Equal(t, "dispatch-detail", logs[0].UIContext)
	assert.ElementsMatch(t, []string{"recipient_name", "recipient_org"}, logs[0].FieldsAccessed)
}

func TestSensitive_ViewerIsDeniedAndAudited(t *testing.T) {
	f := newFixture(t)
	txID := f.issue(t)

	data, auditID, err := f.sensitive.Read(context.Background(), viewer, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   txID,
		Fields:     []string{"recipient_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrForbidden))
	assert.Nil(t, data)
	assert.NotEmpty(t, auditID)

	logs := f.readLogs(t, repository.TargetTransaction, txID)
	require.Len(t, logs, 1)
	assert.Equal(t, repository.ReadDenied, logs[0].Result)
	assert.Equal(t, "api", logs[0].UIContext)
}

func TestSensitive_WarehouseHighValueOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expensive := f.loan(t, 90000)
	cheap := f.loan(t, 1200)

	data, _, err := f.sensitive.Read(ctx, keeper, service.SensitiveReadRequest{
		TargetType: repository.TargetAssetTransaction,
		TargetID:   expensive,
		Fields:     []string{"borrower_name", "borrower_contact"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana", data["borrower_name"])
	assert.Equal(t, "+1 555 0100", data["borrower_contact"])

	_, _, err = f.sensitive.Read(ctx, keeper, service.SensitiveReadRequest{
		TargetType: repository.TargetAssetTransaction,
		TargetID:   cheap,
		Fields:     []string{"borrower_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, _, err = f.sensitive.Read(ctx, keeper, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   f.issue(t),
		Fields:     []string{"recipient_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	assert.Len(t, f.readLogs(t, repository.TargetAssetTransaction, expensive), 1)
	denied := f.readLogs(t, repository.TargetAssetTransaction, cheap)
	require.Len(t, denied, 1)
	assert.Equal(t, repository.ReadDenied, denied[0].Result)
}

func TestSensitive_ThresholdIsExclusive(t *testing.T) {
	f := newFixture(t)
	atThreshold := f.loan(t, 50000)

	_, _, err := f.sensitive.Read(context.Background(), keeper, service.SensitiveReadRequest{
		TargetType: repository.TargetAssetTransaction,
		TargetID:   atThreshold,
		Fields:     []string{"borrower_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestSensitive_DispatcherFollowsSetting(t *testing.T) {
	ctx := context.Background()
	req := func(id string) service.SensitiveReadRequest {
		return service.SensitiveReadRequest{TargetType: repository.TargetTransaction, TargetID: id, Fields: []string{"recipient_phone"}}
	}

	off := newFixture(t)
	_, _, err := off.sensitive.Read(ctx, dispatcher, req(off.issue(t)))
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	on := newFixtureWithPolicy(t, permissions.NewSensitivePolicy(decimal.NewFromInt(50000), true))
	data, _, err := on.sensitive.Read(ctx, dispatcher, req(on.issue(t)))
	require.NoError(t, err)
	assert.Equal(t, "+1 555 0199", data["recipient_phone"])

	_, _, err = on.sensitive.Read(ctx, dispatcher, service.SensitiveReadRequest{
		TargetType: repository.TargetAssetTransaction,
		TargetID:   on.loan(t, 90000),
		Fields:     []string{"borrower_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}

func TestSensitive_DonorContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := &repository.DonationSource{
		Name: "Harbor Rotary", Type: repository.DonorOrganization,
		ContactPerson: strPtr("Lee"), Email: strPtr("lee@example.org"),
	}
	require.NoError(t, f.ledger.CreateDonationSource(ctx, donor))

	data, _, err := f.sensitive.Read(ctx, admin, service.SensitiveReadRequest{
		TargetType: repository.TargetDonor,
		TargetID:   donor.ID,
		Fields:     []string{"contact_person", "email"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Lee", data["contact_person"])
	assert.Equal(t, "lee@example.org", data["email"])
}

func TestSensitive_BadRequestsAreAuditedAsDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.issue(t)

	_, _, err := f.sensitive.Read(ctx, admin, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   txID,
		Fields:     []string{"borrower_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, _, err = f.sensitive.Read(ctx, admin, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   txID,
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, _, err = f.sensitive.Read(ctx, admin, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   "missing",
		Fields:     []string{"recipient_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	logs := f.readLogs(t, repository.TargetTransaction, txID)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, repository.ReadDenied, l.Result)
	}
	missing := f.readLogs(t, repository.TargetTransaction, "missing")
	require.Len(t, missing, 1)
	assert.Equal(t, repository.ReadDenied, missing[0].Result)
}

func TestSensitive_AnonymousIsDenied(t *testing.T) {
	f := newFixture(t)
	txID := f.issue(t)

	_, _, err := f.sensitive.Read(context.Background(), nil, service.SensitiveReadRequest{
		TargetType: repository.TargetTransaction,
		TargetID:   txID,
		Fields:     []string{"recipient_name"},
	})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	logs := f.readLogs(t, repository.TargetTransaction, txID)
	require.Len(t, logs, 1)
	assert.Equal(t, "anonymous", logs[0].ActorUID)
	assert.Equal(t, "none", logs[0].ActorRole)
}
