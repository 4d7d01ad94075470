package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
)

type TagRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTagRepository(db *pgxpool.Pool, logger *zap.Logger) *TagRepository {
	return &TagRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate returns the user's tag with the given name, creating it when
// missing. Tags are unique per (user, name).
func (r *TagRepository) GetOrCreate(ctx context.Context, userID int64, name string) (*models.Tag, error) {
	query := squirrel.Select("id", "user_id", "name").
		From("tags").
		Where(squirrel.Eq{"user_id": userID, "name": name}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var tag models.Tag
	err = r.db.QueryRow(ctx, sql, args...).Scan(&tag.ID, &tag.UserID, &tag.Name)
	if err == nil {
		return &tag, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	insert := squirrel.Insert("tags").
		Columns("user_id", "name").
		Values(userID, name).
		Suffix("ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name").
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = insert.ToSql()
	if err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&tag.ID); err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	tag.UserID = userID
	tag.Name = name
	return &tag, nil
}

func (r *TagRepository) AttachToReceipt(ctx context.Context, tagID, receiptID int64) error {
	query := squirrel.Insert("receipt_tags").
		Columns("receipt_id", "tag_id").
		Values(receiptID, tagID).
		Suffix("ON CONFLICT DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *TagRepository) DetachFromReceipt(ctx context.Context, tagID, receiptID int64) error {
	query := squirrel.Delete("receipt_tags").
		Where(squirrel.Eq{"receipt_id": receiptID, "tag_id": tagID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *TagRepository) ListByReceipt(ctx context.Context, receiptID int64) ([]models.Tag, error) {
	query := squirrel.Select("t.id", "t.user_id", "t.name").
		From("tags t").
		Join("receipt_tags rt ON rt.tag_id = t.id").
		Where(squirrel.Eq{"rt.receipt_id": receiptID}).
		OrderBy("t.name").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
