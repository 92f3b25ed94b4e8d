package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/reliefhub/reliefhub-backend/pkg/database"
	"github.com/reliefhub/reliefhub-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return database.Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop()), mock
}

func TestWithinTx_Commits(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE resources").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, database.InTx(ctx))
		_, err := db.Q(ctx).ExecContext(ctx, "UPDATE resources SET quantity = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE resources").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := db.Q(ctx).ExecContext(ctx, "UPDATE resources SET quantity = 1"); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_NestedCallsJoin(t *testing.T) {
	db, mock := newMock(t)

	// a single begin/commit pair
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resource_transactions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE resources").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := db.WithinTx(ctx, func(ctx context.Context) error {
			_, err := db.Q(ctx).ExecContext(ctx, "INSERT INTO resource_transactions DEFAULT VALUES")
			return err
		}); err != nil {
			return err
		}
		_, err := db.Q(ctx).ExecContext(ctx, "UPDATE resources SET quantity = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoot_IgnoresAmbientTx(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		_, inTx := db.Q(ctx).(*sqlx.Tx)
		assert.True(t, inTx)

		_, rootInTx := db.Root().(*sqlx.Tx)
		assert.False(t, rootInTx)
		return nil
	})

	require.NoError(t, err)
	assert.False(t, database.InTx(context.Background()))
}
