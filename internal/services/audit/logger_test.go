package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogOperation_AssignsIDAndTimestampWhenAbsent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.ndjson")
	logger, err := NewAuditLogger(logPath)
	require.NoError(t, err)

	require.NoError(t, logger.LogOperation(AuditLogEntry{
		WalletID:  "https://lp-a",
		Operation: "LP_BLACKLIST",
		Status:    "FAILURE",
	}))

	entries, err := logger.ReadLog()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestLogOperation_PreservesCallerSuppliedID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.ndjson")
	logger, err := NewAuditLogger(logPath)
	require.NoError(t, err)

	require.NoError(t, logger.LogOperation(AuditLogEntry{
		ID:        "fixed-id",
		WalletID:  "https://lp-b",
		Operation: "LP_BLACKLIST",
		Status:    "FAILURE",
	}))

	entries, err := logger.ReadLog()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixed-id", entries[0].ID)
}
