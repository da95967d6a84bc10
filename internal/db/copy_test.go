package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyRows_EmptyRows(t *testing.T) {
	n, err := CopyRows(context.TODO(), nil, "distribution_events", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyRows_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"distribution_events"}, []string{"id", "amount"}).WillReturnResult(3)

	rows := [][]any{{"e1", "100.00"}, {"e2", "200.00"}, {"e3", "300.00"}}
	n, err := CopyRows(context.Background(), mock, "distribution_events", []string{"id", "amount"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyRows_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"tier_audit_steps"}, []string{"id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyRows(context.Background(), mock, "tier_audit_steps", []string{"id"}, [][]any{{"a1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO tier_audit_steps")
	assert.NoError(t, mock.ExpectationsWereMet())
}
