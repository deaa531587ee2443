package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

func TestPostgresStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("builds snapshot from rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT user_id, active_limit, records FROM ledger_transactions").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "active_limit", "records"}).
				AddRow("42", 1, []byte(`[{"id":"ref-A","status":"pending"}]`)).
				AddRow("7", 0, []byte(`[]`)))
		mock.ExpectQuery("SELECT user_id, amount FROM ledger_balances").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "amount"}).
				AddRow("7", 3000))

		snap, err := NewPostgresStore(db).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.TransactionRecord{{ID: "ref-A", Status: models.StatusPending}}, snap.Transactions["42"].Data)
		assert.Empty(t, snap.Transactions["7"].Data)
		assert.Equal(t, int64(3000), snap.Balances["7"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed records are corruption", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT user_id, active_limit, records FROM ledger_transactions").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "active_limit", "records"}).
				AddRow("42", 1, []byte(`{"broken"`)))

		_, err = NewPostgresStore(db).Load(ctx)
		assert.ErrorIs(t, err, ErrCorruptData)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure is not corruption", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT user_id, active_limit, records FROM ledger_transactions").
			WillReturnError(errors.New("connection reset"))

		_, err = NewPostgresStore(db).Load(ctx)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCorruptData)
	})
}

func TestPostgresStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces tables in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM ledger_transactions").WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec("DELETE FROM ledger_balances").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_transactions").
			WithArgs("42", 1, `[{"id":"ref-A","status":"success"},{"id":"ref-B","status":"pending"}]`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_balances").
			WithArgs("42", int64(10000)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err = NewPostgresStore(db).Save(ctx, sampleSnapshot())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on insert failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM ledger_transactions").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM ledger_balances").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO ledger_transactions").
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err = NewPostgresStore(db).Save(ctx, sampleSnapshot())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger_transactions").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewPostgresStore(db).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
