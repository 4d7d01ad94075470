package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squirll/receiptd/internal/models"
)

func TestUsageStatements(t *testing.T) {
	t.Run("ensure row tolerates concurrent creates", func(t *testing.T) {
		sql, args, err := usageEnsureStmt(42, models.UsageReceiptUpload, "2026-08-28").ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "ON CONFLICT (user_id, usage_type, date) DO NOTHING")
		assert.Contains(t, sql, "$4")
		assert.ElementsMatch(t, []any{int64(42), "receipt_upload", "2026-08-28", 0}, args)
	})

	t.Run("lock acquires the row before incrementing", func(t *testing.T) {
		sql, args, err := usageLockStmt(42, models.UsageReceiptUpload, "2026-08-28").ToSql()
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(sql, "FOR UPDATE"), sql)
		assert.Contains(t, sql, "user_id")
		assert.Contains(t, sql, "usage_type")
		assert.Contains(t, sql, "date")
		assert.ElementsMatch(t, []any{int64(42), "receipt_upload", "2026-08-28"}, args)
	})

	t.Run("increment is relative, never a read-modify-write", func(t *testing.T) {
		sql, args, err := usageIncrementStmt(7).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "count = count + 1")
		assert.Equal(t, []any{int64(7)}, args)
	})
}
