package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

func TestMembershipRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	cols := []string{"membership_type", "membership_start", "membership_end"}
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("gold", start, end))
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(nil, nil, nil))
	mock.ExpectQuery(`FROM users WHERE id=\?`).WithArgs(uint64(9)).
		WillReturnError(sql.ErrNoRows)

	repo := NewMembershipRepo(db)

	m, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.TierGold, m.Tier)
	require.NotNil(t, m.ExpiresAt)
	assert.Equal(t, model.TierGold, m.EffectiveTier(start.Add(time.Hour)))
	assert.Equal(t, model.TierNone, m.EffectiveTier(end.Add(time.Second)))

	m, err = repo.Get(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, model.TierNone, m.Tier)
	assert.Nil(t, m.ExpiresAt)

	m, err = repo.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, model.TierNone, m.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	starts := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM shows WHERE id = \?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "movie_title", "starts_at", "base_price_minor", "status"}).
			AddRow(uint64(3), "tt2543164", "Arrival", starts, int64(500), "SCHEDULED"))
	mock.ExpectQuery(`FROM shows WHERE id = \?`).WithArgs(uint64(4)).
		WillReturnError(sql.ErrNoRows)

	repo := NewShowRepo(db)
	s, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(500), s.BasePriceMinor)
	assert.True(t, s.Bookable(starts.Add(-time.Minute)))

	_, err = repo.GetByID(context.Background(), 4)
	assert.ErrorIs(t, err, model.ErrShowNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
