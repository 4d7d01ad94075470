package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
)

var emailColumns = []string{
	"id", "user_id", "sender", "subject", "company", "html",
	"text_content", "headers", "raw_email", "attachments", "category", "created_at",
}

type EmailRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEmailRepository(db *pgxpool.Pool, logger *zap.Logger) *EmailRepository {
	return &EmailRepository{
		db:     db,
		logger: logger,
	}
}

func (r *EmailRepository) Create(ctx context.Context, email *models.Email) error {
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now()
	}
	if email.Attachments == nil {
		email.Attachments = map[string]models.Attachment{}
	}
	attachments, err := json.Marshal(email.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	query := squirrel.Insert("emails").
		Columns("user_id", "sender", "subject", "company", "html",
			"text_content", "headers", "raw_email", "attachments", "category", "created_at").
		Values(email.UserID, email.Sender, email.Subject, email.Company, email.HTML,
			email.TextContent, email.Headers, email.RawEmail, attachments,
			string(email.Category), email.CreatedAt).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&email.ID); err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

func (r *EmailRepository) GetByID(ctx context.Context, id int64) (*models.Email, error) {
	query := squirrel.Select(emailColumns...).
		From("emails").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	return scanEmail(r.db.QueryRow(ctx, sql, args...))
}

func (r *EmailRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Email, error) {
	query := squirrel.Select(emailColumns...).
		From("emails").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
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

	var emails []*models.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func scanEmail(row rowScanner) (*models.Email, error) {
	var email models.Email
	var category string
	var attachments []byte
	if err := row.Scan(
		&email.ID, &email.UserID, &email.Sender, &email.Subject, &email.Company,
		&email.HTML, &email.TextContent, &email.Headers, &email.RawEmail,
		&attachments, &category, &email.CreatedAt,
	); err != nil {
		return nil, err
	}
	email.Category = models.EmailCategory(category)
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &email.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return &email, nil
}
