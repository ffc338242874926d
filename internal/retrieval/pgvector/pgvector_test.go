package pgvector

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
)

func newMock(t *testing.T) (*Retriever, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := New(db, "records")
	require.NoError(t, err)
	return r, mock
}

func expectIndex(mock sqlmock.Sqlmock, n int) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS vector`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS records`)).WillReturnResult(sqlmock.NewResult(0, 0))
	if n > 0 {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE records`)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for i := 0; i < n; i++ {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO records`)).
			WithArgs(i, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(int64(i), 1))
	}
	mock.ExpectCommit()
}

func TestNew_RejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, "records; DROP TABLE users")
	assert.Error(t, err)
}

func TestIndexAndRetrieve(t *testing.T) {
	r, mock := newMock(t)
	records := []domain.Record{
		{ID: "a", Content: "alpha", Meta: map[string]any{"source": "test"}, Embedding: []float32{1, 0}},
		{ID: "b", Content: "beta", Embedding: []float32{0, 1}},
	}
	expectIndex(mock, len(records))
	require.NoError(t, r.Index(context.Background(), records))

	rows := sqlmock.NewRows([]string{"id", "content", "meta", "embedding", "score"}).
		AddRow("a", "alpha", []byte(`{"source":"test"}`), []byte("[1,0]"), 0.97).
		AddRow("b", "beta", []byte(`{}`), []byte("[0,1]"), 0.12)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY embedding <=> $1, seq`)).
		WithArgs(sqlmock.AnyArg(), 2).
		WillReturnRows(rows)

	got, err := r.Retrieve(context.Background(), []float32{0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Record.ID)
	assert.Equal(t, "test", got[0].Record.Meta["source"])
	assert.Equal(t, []float32{1, 0}, got[0].Record.Embedding)
	assert.InDelta(t, 0.97, got[0].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrieve_DimensionMismatchRunsNoQuery(t *testing.T) {
	r, mock := newMock(t)
	expectIndex(mock, 1)
	require.NoError(t, r.Index(context.Background(), []domain.Record{
		{ID: "a", Content: "alpha", Embedding: []float32{1, 0, 0}},
	}))

	_, err := r.Retrieve(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	r, mock := newMock(t)
	expectIndex(mock, 0)
	require.NoError(t, r.Index(context.Background(), nil))

	got, err := r.Retrieve(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndex_RollsBackOnFailure(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS vector`)).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := r.Index(context.Background(), []domain.Record{{ID: "a", Content: "x", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrBackend)
	assert.NoError(t, mock.ExpectationsWereMet())

	// a failed index leaves nothing to search
	got, err := r.Retrieve(context.Background(), []float32{1}, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}
