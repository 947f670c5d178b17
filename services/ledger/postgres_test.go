package ledger

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreBudgetLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	t.Run("configured", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT monthly_budget_usd FROM budget_limits WHERE tenant_id = $1`)).
			WithArgs("acme").
			WillReturnRows(sqlmock.NewRows([]string{"monthly_budget_usd"}).AddRow(50.0))

		limit, configured, err := store.BudgetLimit(context.Background(), "acme")
		require.NoError(t, err)
		assert.True(t, configured)
		assert.InDelta(t, 50.0, limit, 1e-9)
	})

	t.Run("not configured", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT monthly_budget_usd FROM budget_limits WHERE tenant_id = $1`)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"monthly_budget_usd"}))

		_, configured, err := store.BudgetLimit(context.Background(), "ghost")
		require.NoError(t, err)
		assert.False(t, configured)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAddSpendUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(`INSERT INTO spend_ledger`).
		WithArgs("acme", "2025-01", 0.0005, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_usd"}).AddRow(12.5))

	total, err := store.AddSpend(context.Background(), "acme", "2025-01", 0.0005)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, total, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSpendMissingRowIsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT COALESCE\(total_usd, 0\) FROM spend_ledger`).
		WithArgs("acme", "2025-02").
		WillReturnRows(sqlmock.NewRows([]string{"total_usd"}))

	total, err := store.Spend(context.Background(), "acme", "2025-02")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAddRequestsUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(`INSERT INTO request_ledger`).
		WithArgs("acme", "2025-01", 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"requests"}).AddRow(42))

	count, err := store.AddRequests(context.Background(), "acme", "2025-01", 1)
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSetBudgetLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec(`INSERT INTO budget_limits`).
		WithArgs("acme", 75.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetBudgetLimit(context.Background(), "acme", 75.0))
	assert.NoError(t, mock.ExpectationsWereMet())
}
