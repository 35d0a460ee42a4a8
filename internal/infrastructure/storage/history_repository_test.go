package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

var columns = []string{"run_id", "task", "dedup_key", "category", "destination", "title", "delivered_at"}

func TestRecordDeliveryInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo, err := NewHistoryRepositoryWithPool(mock, "")
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()
	d := domain.Delivery{RunID: "r1", Task: "spoilers", Key: "card-1", Category: "regular", Destination: "100", Title: "Sol Ring", DeliveredAt: at}

	mock.ExpectExec(`INSERT INTO deliveries \(run_id,task,dedup_key,category,destination,title,delivered_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7\)`).
		WithArgs("r1", "spoilers", "card-1", "regular", "100", "Sol Ring", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.RecordDelivery(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDeliveryWrapsError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo, err := NewHistoryRepositoryWithPool(mock, "history")
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectExec("INSERT INTO history").WillReturnError(boom)

	err = repo.RecordDelivery(context.Background(), domain.Delivery{})
	assert.ErrorIs(t, err, boom)
}

func TestRecentDeliveriesScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo, err := NewHistoryRepositoryWithPool(mock, "deliveries")
	require.NoError(t, err)

	newer := time.Unix(1700000100, 0).UTC()
	older := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(`SELECT run_id, task, dedup_key, category, destination, title, delivered_at FROM deliveries ORDER BY delivered_at DESC LIMIT 2`).
		WillReturnRows(mock.NewRows(columns).
			AddRow("r2", "news", "/en/news/feature/x", "feature", "7", "", newer).
			AddRow("r1", "spoilers", "card-1", "regular", "100", "Sol Ring", older))

	got, err := repo.RecentDeliveries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].RunID)
	assert.Equal(t, newer, got[0].DeliveredAt)
	assert.Equal(t, "Sol Ring", got[1].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo, err := NewHistoryRepositoryWithPool(mock, "deliveries")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS deliveries").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectsInvalidTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewHistoryRepositoryWithPool(mock, "bad;name")
	assert.Error(t, err)

	_, err = NewHistoryRepositoryWithPool(nil, "")
	assert.Error(t, err)
}

func TestMemoryHistoryNewestFirstAndBounded(t *testing.T) {
	t.Parallel()

	h := NewMemoryHistory(2)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.RecordDelivery(context.Background(), domain.Delivery{Key: id}))
	}

	got, err := h.RecentDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Key)
	assert.Equal(t, "b", got[1].Key)

	got, err = h.RecentDeliveries(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
