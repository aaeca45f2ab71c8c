package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleguard/agent/internal/models"
)

func newJournalRepoMock(t *testing.T) (*JournalRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS deliveries").WillReturnResult(sqlmock.NewResult(0, 0))
	sqlxDB := sqlx.NewDb(db, "sqlite")
	repo, err := NewJournalRepository(sqlxDB)
	require.NoError(t, err)
	return repo, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestJournalRepositoryRecord(t *testing.T) {
	repo, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	artifact := models.NewPhotoArtifact([]byte("frame"), time.Now())
	mock.ExpectExec("INSERT INTO deliveries").
		WithArgs(artifact.ID, "PHOTO", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Record(context.Background(), artifact, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepositoryRecent(t *testing.T) {
	repo, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"artifact_id", "kind", "delivered_at"}).
		AddRow("a2", "LOCATION", now).
		AddRow("a1", "PHOTO", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT artifact_id, kind, delivered_at FROM deliveries").
		WithArgs(10).
		WillReturnRows(rows)

	records, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a2", records[0].ArtifactID)
	assert.Equal(t, models.ArtifactKindLocation, records[0].Kind)
}
