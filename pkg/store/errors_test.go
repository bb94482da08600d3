package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise upstream database failures, which the in-memory
// SQLite store cannot produce on demand.

func TestSQLiteStore_ListRelatedDocuments_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("disk I/O error"))

	s := NewSQLiteStoreFromDB(db)
	_, _, err = s.ListRelatedDocuments(context.Background(), 1, 10, 0)
	assert.ErrorContains(t, err, "failed to count related documents")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ReplaceDocumentEdges_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM block_relationships").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT OR IGNORE INTO block_relationships").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	s := NewSQLiteStoreFromDB(db)
	err = s.ReplaceDocumentEdges(context.Background(), 1, []int64{2})
	assert.ErrorContains(t, err, "failed to insert edge")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetIndexEntryByBlock_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, block_id, name, slug FROM index_entries").
		WillReturnError(errors.New("connection reset"))

	s := NewSQLiteStoreFromDB(db)
	_, err = s.GetIndexEntryByBlock(context.Background(), 7)
	assert.ErrorContains(t, err, "failed to get index entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}
