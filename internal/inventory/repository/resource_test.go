package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/reliefhub/reliefhub-backend/internal/inventory/repository"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
	"github.com/reliefhub/reliefhub-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resourceColumns = []string{
	"id", "name", "category", "quantity", "unit", "min_quantity", "status",
	"control_level", "expires_at", "location", "barcode", "storage_location_id",
	"is_assetized", "version", "created_at", "updated_at",
}

func TestResourceRepository_Create(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewResourceRepository(mockDB.DB)
	now := time.Now()

	mockDB.Mock.ExpectQuery(`INSERT INTO resources`).
		WithArgs(testutil.AnyUUID{}, "Water 5L", "water", 40, "bottle", 10,
			repository.ResourceAvailable, repository.ControlCivil,
			nil, nil, nil, nil, false, 1).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	res := &repository.Resource{
		Name:         "Water 5L",
		Category:     "water",
		Quantity:     40,
		Unit:         "bottle",
		MinQuantity:  10,
		Status:       repository.ResourceAvailable,
		ControlLevel: repository.ControlCivil,
	}
	err := repo.Create(context.Background(), res)

	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, now, res.CreatedAt)
	mockDB.ExpectationsWereMet(t)
}

func TestResourceRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		repo := repository.NewResourceRepository(mockDB.DB)
		now := time.Now()

		mockDB.ExpectQuery(`SELECT * FROM resources WHERE id = $1`).
			WithArgs("res-1").
			WillReturnRows(testutil.MockRows(resourceColumns...).AddRow(
				"res-1", "Insulin", "medicine", 12, "vial", 5, repository.ResourceAvailable,
				repository.ControlMedical, nil, nil, nil, nil, false, 3, now, now,
			))

		res, err := repo.GetByID(context.Background(), "res-1")

		require.NoError(t, err)
		assert.Equal(t, "Insulin", res.Name)
		assert.True(t, res.IsTraceable())
		assert.Equal(t, 3, res.Version)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("missing maps to not found", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		repo := repository.NewResourceRepository(mockDB.DB)

		mockDB.ExpectQuery(`SELECT * FROM resources WHERE id = $1`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		res, err := repo.GetByID(context.Background(), "nope")

		assert.Nil(t, res)
		assert.ErrorIs(t, err, errors.ErrNotFound)
		mockDB.ExpectationsWereMet(t)
	})
}

func TestResourceRepository_GetForUpdate_LocksInsideTx(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewResourceRepository(mockDB.DB)
	now := time.Now()

	mockDB.Mock.ExpectBegin()
	mockDB.ExpectQuery(`SELECT * FROM resources WHERE id = $1 FOR UPDATE`).
		WithArgs("res-1").
		WillReturnRows(testutil.MockRows(resourceColumns...).AddRow(
			"res-1", "Tarp", "shelter", 8, "piece", 2, repository.ResourceAvailable,
			repository.ControlCivil, nil, nil, nil, nil, false, 1, now, now,
		))
	mockDB.Mock.ExpectCommit()

	err := mockDB.DB.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := repo.GetForUpdate(ctx, "res-1")
		return err
	})

	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestResourceRepository_UpdateStock(t *testing.T) {
	t.Run("bumps version", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		repo := repository.NewResourceRepository(mockDB.DB)
		now := time.Now()

		mockDB.Mock.ExpectQuery(`UPDATE resources SET`).
			WithArgs("res-1", 0, repository.ResourceDepleted, nil, nil).
			WillReturnRows(testutil.MockRows("version", "updated_at").AddRow(4, now))

		res := &repository.Resource{ID: "res-1", Quantity: 0, Status: repository.ResourceDepleted, Version: 3}
		require.NoError(t, repo.UpdateStock(context.Background(), res))

		assert.Equal(t, 4, res.Version)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("missing row", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		repo := repository.NewResourceRepository(mockDB.DB)

		mockDB.Mock.ExpectQuery(`UPDATE resources SET`).WillReturnError(sql.ErrNoRows)

		err := repo.UpdateStock(context.Background(), &repository.Resource{ID: "gone"})
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestResourceRepository_List(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewResourceRepository(mockDB.DB)
	now := time.Now()

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "resources" WHERE \(\("category" = \$1\) AND \("control_level" = \$2\)\) ORDER BY "name" ASC`).
		WithArgs("medicine", repository.ControlMedical).
		WillReturnRows(testutil.MockRows(resourceColumns...).
			AddRow("a", "Amoxicillin", "medicine", 50, "box", 10, repository.ResourceAvailable,
				repository.ControlMedical, nil, nil, nil, nil, false, 1, now, now).
			AddRow("b", "Bandages", "medicine", 3, "roll", 10, repository.ResourceLow,
				repository.ControlMedical, nil, nil, nil, nil, false, 1, now, now))

	list, err := repo.List(context.Background(), repository.ResourceFilter{
		Category:     "medicine",
		ControlLevel: repository.ControlMedical,
	})

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, repository.ResourceLow, list[1].Status)
	mockDB.ExpectationsWereMet(t)
}

func TestResourceRepository_List_QueryError(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := repository.NewResourceRepository(mockDB.DB)

	mockDB.Mock.ExpectQuery(`FROM "resources"`).WillReturnError(sqlmock.ErrCancelled)

	_, err := repo.List(context.Background(), repository.ResourceFilter{})
	assert.Error(t, err)
}
