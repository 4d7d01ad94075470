package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/squirll/receiptd/internal/models"
)

var receiptColumns = []string{
	"id", "user_id", "company", "address", "company_phone", "date", "time",
	"sub_total", "tax", "tax_rate", "total", "tip",
	"currency_symbol", "currency_code", "receipt_type", "item_count",
	"raw_email", "raw_images", "manual_entry", "created_at",
}

var itemColumns = []string{
	"id", "receipt_id", "description", "product_id", "quantity",
	"quantity_unit", "price", "total_price", "item_category",
}

type ReceiptRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReceiptRepository(db *pgxpool.Pool, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// CreateWithItems persists the receipt, its items, and the owner's daily
// upload counter in one transaction. The counter row is locked FOR UPDATE so
// concurrent uploads by the same user serialize instead of losing counts.
func (r *ReceiptRepository) CreateWithItems(ctx context.Context, receipt *models.Receipt) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.insertReceipt(ctx, tx, receipt); err != nil {
		return err
	}

	for i := range receipt.Items {
		receipt.Items[i].ReceiptID = receipt.ID
		if err := r.insertItem(ctx, tx, &receipt.Items[i]); err != nil {
			return err
		}
	}

	if err := incrementUsage(ctx, tx, receipt.UserID, models.UsageReceiptUpload, receipt.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) insertReceipt(ctx context.Context, tx pgx.Tx, receipt *models.Receipt) error {
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now()
	}

	query := squirrel.Insert("receipts").
		Columns("user_id", "company", "address", "company_phone", "date", "time",
			"sub_total", "tax", "tax_rate", "total", "tip",
			"currency_symbol", "currency_code", "receipt_type", "item_count",
			"raw_email", "raw_images", "manual_entry", "created_at").
		Values(receipt.UserID, receipt.Company, receipt.Address, receipt.CompanyPhone,
			receipt.Date, timeOfDay(receipt.Time),
			receipt.SubTotal, receipt.Tax, receipt.TaxRate, receipt.Total, receipt.Tip,
			receipt.CurrencySymbol, receipt.CurrencyCode, int(receipt.ReceiptType), receipt.ItemCount,
			receipt.RawEmail, receipt.RawImages, receipt.ManualEntry, receipt.CreatedAt).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, sql, args...).Scan(&receipt.ID); err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) insertItem(ctx context.Context, tx pgx.Tx, item *models.Item) error {
	query := squirrel.Insert("items").
		Columns("receipt_id", "description", "product_id", "quantity",
			"quantity_unit", "price", "total_price", "item_category").
		Values(item.ReceiptID, item.Description, item.ProductID, item.Quantity,
			item.QuantityUnit, item.Price, item.TotalPrice, int(item.ItemCategory)).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, sql, args...).Scan(&item.ID); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id int64) (*models.Receipt, error) {
	query := squirrel.Select(receiptColumns...).
		From("receipts").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	receipt, err := scanReceipt(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, receipt.ID)
	if err != nil {
		return nil, err
	}
	receipt.Items = items
	return receipt, nil
}

func (r *ReceiptRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Receipt, error) {
	query := squirrel.Select(receiptColumns...).
		From("receipts").
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

	var receipts []*models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func (r *ReceiptRepository) listItems(ctx context.Context, receiptID int64) ([]models.Item, error) {
	query := squirrel.Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"receipt_id": receiptID}).
		OrderBy("id").
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

	var items []models.Item
	for rows.Next() {
		var item models.Item
		var category int
		if err := rows.Scan(
			&item.ID, &item.ReceiptID, &item.Description, &item.ProductID,
			&item.Quantity, &item.QuantityUnit, &item.Price, &item.TotalPrice,
			&category,
		); err != nil {
			return nil, err
		}
		item.ItemCategory = models.Category(category)
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateRawImages records blob references after the background upload
// finishes. The receipt row itself is otherwise immutable.
func (r *ReceiptRepository) UpdateRawImages(ctx context.Context, id int64, blobNames []string) error {
	query := squirrel.Update("receipts").
		Set("raw_images", blobNames).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// UpdateCategories applies a categorization pass atomically: every item
// update and the derived receipt category commit together or not at all, so
// the receipt-level category can never drift from its items.
func (r *ReceiptRepository) UpdateCategories(ctx context.Context, receiptID int64, itemCategories map[int64]models.Category, receiptCategory models.Category) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for itemID, category := range itemCategories {
		query := squirrel.Update("items").
			Set("item_category", int(category)).
			Where(squirrel.Eq{"id": itemID, "receipt_id": receiptID}).
			PlaceholderFormat(squirrel.Dollar)

		sql, args, err := query.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("update item %d category: %w", itemID, err)
		}
	}

	query := squirrel.Update("receipts").
		Set("receipt_type", int(receiptCategory)).
		Where(squirrel.Eq{"id": receiptID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update receipt category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	var receipt models.Receipt
	var receiptType int
	var txTime pgtype.Time
	if err := row.Scan(
		&receipt.ID, &receipt.UserID, &receipt.Company, &receipt.Address,
		&receipt.CompanyPhone, &receipt.Date, &txTime,
		&receipt.SubTotal, &receipt.Tax, &receipt.TaxRate, &receipt.Total, &receipt.Tip,
		&receipt.CurrencySymbol, &receipt.CurrencyCode, &receiptType, &receipt.ItemCount,
		&receipt.RawEmail, &receipt.RawImages, &receipt.ManualEntry, &receipt.CreatedAt,
	); err != nil {
		return nil, err
	}
	receipt.ReceiptType = models.Category(receiptType)
	if txTime.Valid {
		t := time.Time{}.Add(time.Duration(txTime.Microseconds) * time.Microsecond)
		receipt.Time = &t
	}
	return &receipt, nil
}

func timeOfDay(t *time.Time) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	micros := int64(t.Hour())*3600*1e6 + int64(t.Minute())*60*1e6 + int64(t.Second())*1e6
	return pgtype.Time{Microseconds: micros, Valid: true}
}
