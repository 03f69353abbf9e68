package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPurgeExpiredOTPs(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM otps WHERE expires_at < \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := PurgeExpiredOTPs(context.Background(), dbMock, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeExpiredOTPs_Error(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectExec("DELETE FROM otps").WillReturnError(errors.New("db fail"))

	_, err = PurgeExpiredOTPs(context.Background(), dbMock, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge otps")
}

func TestStartOTPCleaner_LogsRemovedRows(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectExec("DELETE FROM otps").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartOTPCleaner(ctx, dbMock, 50*time.Millisecond, zap.New(core))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("cleaned expired otps").Len() > 0
	}, time.Second, 10*time.Millisecond)
	cancel()

	entry := logs.FilterMessage("cleaned expired otps").All()[0]
	assert.EqualValues(t, 3, entry.ContextMap()["removed"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartOTPCleaner_LogsFailure(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	mock.ExpectExec("DELETE FROM otps").
		WithArgs(sqlmock.AnyArg()).
		WillReturnError(errors.New("db fail"))

	core, logs := observer.New(zapcore.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartOTPCleaner(ctx, dbMock, 50*time.Millisecond, zap.New(core))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("failed to clean expired otps").Len() > 0
	}, time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartOTPCleaner_StopsOnCancel(t *testing.T) {
	dbMock, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbMock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	StartOTPCleaner(ctx, dbMock, 100*time.Millisecond, zap.NewNop())
	cancel()

	time.Sleep(150 * time.Millisecond)
	assert.NoError(t, mock.ExpectationsWereMet(), "no statements after cancel")
}
