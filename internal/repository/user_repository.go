package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
)

var userColumns = []string{
	"id", "email", "phone_number", "subscription_type", "squirll_id", "created_at",
}

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := squirrel.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryOne(ctx, query)
}

// GetBySquirllID resolves the owner of an inbound email by the pseudo
// address it was sent to.
func (r *UserRepository) GetBySquirllID(ctx context.Context, squirllID string) (*models.User, error) {
	query := squirrel.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"squirll_id": squirllID}).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryOne(ctx, query)
}

func (r *UserRepository) queryOne(ctx context.Context, query squirrel.SelectBuilder) (*models.User, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var user models.User
	var subscription string
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&user.ID, &user.Email, &user.PhoneNumber, &subscription,
		&user.SquirllID, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.SubscriptionType = models.SubscriptionType(subscription)
	return &user, nil
}
