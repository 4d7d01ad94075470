package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
)

type UsageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUsageRepository(db *pgxpool.Pool, logger *zap.Logger) *UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Increment bumps the (user, kind, day) counter in its own transaction.
// Ingestion uses incrementUsage inside the receipt transaction instead; this
// entry point serves the other usage kinds.
func (r *UsageRepository) Increment(ctx context.Context, userID int64, kind models.UsageKind) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := incrementUsage(ctx, tx, userID, kind, time.Now()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetCount returns the counter value for the given day, zero when no row
// exists yet.
func (r *UsageRepository) GetCount(ctx context.Context, userID int64, kind models.UsageKind, day time.Time) (int, error) {
	query := squirrel.Select("count").
		From("usage_trackers").
		Where(squirrel.Eq{
			"user_id":    userID,
			"usage_type": string(kind),
			"date":       day.Format("2006-01-02"),
		}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.QueryRow(ctx, sql, args...).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// incrementUsage performs a get-or-create followed by a locked increment
// inside the caller's transaction. SELECT ... FOR UPDATE serializes
// concurrent increments on the same (user, kind, day) row.
func incrementUsage(ctx context.Context, tx pgx.Tx, userID int64, kind models.UsageKind, at time.Time) error {
	day := at.Format("2006-01-02")

	sql, args, err := usageEnsureStmt(userID, kind, day).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("ensure usage row: %w", err)
	}

	sql, args, err = usageLockStmt(userID, kind, day).ToSql()
	if err != nil {
		return err
	}
	var id int64
	if err := tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return fmt.Errorf("lock usage row: %w", err)
	}

	sql, args, err = usageIncrementStmt(id).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("increment usage row: %w", err)
	}
	return nil
}

func usageEnsureStmt(userID int64, kind models.UsageKind, day string) squirrel.InsertBuilder {
	return squirrel.Insert("usage_trackers").
		Columns("user_id", "usage_type", "date", "count").
		Values(userID, string(kind), day, 0).
		Suffix("ON CONFLICT (user_id, usage_type, date) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)
}

func usageLockStmt(userID int64, kind models.UsageKind, day string) squirrel.SelectBuilder {
	return squirrel.Select("id").
		From("usage_trackers").
		Where(squirrel.Eq{"user_id": userID, "usage_type": string(kind), "date": day}).
		Suffix("FOR UPDATE").
		PlaceholderFormat(squirrel.Dollar)
}

func usageIncrementStmt(id int64) squirrel.UpdateBuilder {
	return squirrel.Update("usage_trackers").
		Set("count", squirrel.Expr("count + 1")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
}
