// Package postgres implements the storage contract on PostgreSQL. Monetary
// and stock mutations run in serializable transactions with row locks, so the
// guarded inventory decrement and the refund recompute are race-free across
// concurrent terminals.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tindapos/backend/internal/domain"
	"tindapos/backend/internal/pos"
	"tindapos/backend/internal/store"
	"tindapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, price_cents, vat_type, low_stock_threshold, active
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.VatType, &p.LowStockThreshold, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product, initialStock int, acquisitionCents int64) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if !domain.IsVatType(product.VatType) {
		return nil, store.ErrValidation
	}
	if initialStock < 0 || acquisitionCents < 0 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	product.Active = true
	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (sku, name, category, price_cents, vat_type, low_stock_threshold, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
	`, product.SKU, product.Name, product.Category, product.PriceCents, product.VatType, product.LowStockThreshold, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (sku, qty, acquisition_cents, active, updated_at)
		VALUES ($1,$2,$3,true,now())
		ON CONFLICT (sku)
		DO UPDATE SET qty = EXCLUDED.qty, acquisition_cents = EXCLUDED.acquisition_cents, active = true, updated_at = now()
	`, product.SKU, initialStock, acquisitionCents)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT sku, name, category, price_cents, vat_type, low_stock_threshold, active
		FROM products
		WHERE sku = $1
	`, sku).Scan(&product.SKU, &product.Name, &product.Category, &product.PriceCents, &product.VatType, &product.LowStockThreshold, &product.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if !domain.IsVatType(product.VatType) {
		return nil, store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, vat_type = $5, low_stock_threshold = $6, active = $7, updated_at = now()
		WHERE sku = $1
	`, product.SKU, product.Name, product.Category, product.PriceCents, product.VatType, product.LowStockThreshold, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, price_cents, vat_type, low_stock_threshold, active
		FROM products
		WHERE active = true AND sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.VatType, &p.LowStockThreshold, &p.Active); err != nil {
			return nil, err
		}
		result[p.SKU] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreatePriceHistory(ctx context.Context, entry domain.ProductPriceHistory) error {
	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_price_history (id, sku, old_price_cents, new_price_cents, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.SKU, entry.OldPriceCents, entry.NewPriceCents, entry.ChangedBy, entry.ChangedAt)
	return err
}

func (s *Store) ListPriceHistory(ctx context.Context, sku string, limit int) ([]domain.ProductPriceHistory, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, old_price_cents, new_price_cents, changed_by, changed_at
		FROM product_price_history
		WHERE sku = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`, sku, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.ProductPriceHistory, 0, limit)
	for rows.Next() {
		var entry domain.ProductPriceHistory
		if err := rows.Scan(&entry.ID, &entry.SKU, &entry.OldPriceCents, &entry.NewPriceCents, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, err
		}
		entry.ChangedAt = entry.ChangedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty, acquisition_cents, active, updated_at
		FROM inventory
		ORDER BY sku ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0, 128)
	for rows.Next() {
		var record domain.InventoryRecord
		if err := rows.Scan(&record.SKU, &record.Qty, &record.AcquisitionCents, &record.Active, &record.UpdatedAt); err != nil {
			return nil, err
		}
		record.UpdatedAt = record.UpdatedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetStockMap(ctx context.Context, skus []string) (map[string]int, error) {
	stockMap := make(map[string]int, len(skus))
	if len(skus) == 0 {
		return stockMap, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty
		FROM inventory
		WHERE sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sku string
		var qty int
		if err := rows.Scan(&sku, &qty); err != nil {
			return nil, err
		}
		stockMap[sku] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sku := range skus {
		if _, ok := stockMap[sku]; !ok {
			stockMap[sku] = 0
		}
	}

	return stockMap, nil
}

func (s *Store) ReceiveDelivery(ctx context.Context, sku string, qty int, acquisitionCents int64) (*domain.InventoryRecord, error) {
	if sku == "" || qty < 1 {
		return nil, store.ErrValidation
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`, sku).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	var currentQty int
	var currentCost int64
	err = tx.QueryRowContext(ctx, `
		SELECT qty, acquisition_cents
		FROM inventory
		WHERE sku = $1
		FOR UPDATE
	`, sku).Scan(&currentQty, &currentCost)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	newCost := currentCost
	if acquisitionCents > 0 {
		newCost = weightedCostCents(currentCost, currentQty, acquisitionCents, qty)
	}

	var record domain.InventoryRecord
	err = tx.QueryRowContext(ctx, `
		INSERT INTO inventory (sku, qty, acquisition_cents, active, updated_at)
		VALUES ($1,$2,$3,true,now())
		ON CONFLICT (sku)
		DO UPDATE SET qty = inventory.qty + $2, acquisition_cents = $3, active = true, updated_at = now()
		RETURNING sku, qty, acquisition_cents, active, updated_at
	`, sku, qty, newCost).Scan(&record.SKU, &record.Qty, &record.AcquisitionCents, &record.Active, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	record.UpdatedAt = record.UpdatedAt.UTC()

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) AdjustStock(ctx context.Context, adjustments []domain.StockCountAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, adj := range adjustments {
		if adj.CountedQty < 0 {
			return store.ErrValidation
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`, adj.SKU).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("sku %s unavailable: %w", adj.SKU, store.ErrNotFound)
		}
	}

	for _, adj := range adjustments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory (sku, qty, acquisition_cents, active, updated_at)
			VALUES ($1,$2,0,true,now())
			ON CONFLICT (sku)
			DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
		`, adj.SKU, adj.CountedQty)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return loadTransaction(ctx, s.db, "idempotency_key", key, false)
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return loadTransaction(ctx, s.db, "id", id, false)
}

func (s *Store) GetTransactionByReceipt(ctx context.Context, receiptNum string) (*domain.Transaction, error) {
	return loadTransaction(ctx, s.db, "receipt_num", receiptNum, false)
}

func loadTransaction(ctx context.Context, q querier, column string, value string, forUpdate bool) (*domain.Transaction, error) {
	if column != "id" && column != "idempotency_key" && column != "receipt_num" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	query := fmt.Sprintf(`
		SELECT id, receipt_num, idempotency_key, total_qty, gross_cents, vatable_cents,
			vat_exempt_cents, vat_zero_rated_cents, vat_cents, discount_cents, total_cents,
			cash_cents, change_cents, discount_type, payment_method,
			COALESCE(reference_number,''), COALESCE(senior_id,''), COALESCE(pwd_id,''),
			cashier, is_deleted, created_at
		FROM transactions
		WHERE %s = $1
	`, column)
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var tx domain.Transaction
	err := q.QueryRowContext(ctx, query, value).Scan(
		&tx.ID,
		&tx.ReceiptNum,
		&tx.IdempotencyKey,
		&tx.TotalQty,
		&tx.GrossCents,
		&tx.VatableCents,
		&tx.VatExemptCents,
		&tx.VatZeroRatedCents,
		&tx.VatCents,
		&tx.DiscountCents,
		&tx.TotalCents,
		&tx.CashCents,
		&tx.ChangeCents,
		&tx.DiscountType,
		&tx.PaymentMethod,
		&tx.ReferenceNumber,
		&tx.SeniorID,
		&tx.PwdID,
		&tx.Cashier,
		&tx.IsDeleted,
		&tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()

	items, err := loadTransactionItems(ctx, q, tx.ID, forUpdate)
	if err != nil {
		return nil, err
	}
	tx.Items = items

	return &tx, nil
}

func loadTransactionItems(ctx context.Context, q querier, transactionID string, forUpdate bool) ([]domain.TransactionItem, error) {
	query := `
		SELECT id, transaction_id, sku, qty, unit_price_cents, total_cents, vat_type,
			vat_cents, net_cents, is_refunded, is_deleted
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id ASC
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := q.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TransactionItem, 0, 8)
	for rows.Next() {
		var item domain.TransactionItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.SKU, &item.Qty, &item.UnitPriceCents, &item.TotalCents, &item.VatType, &item.VatCents, &item.NetCents, &item.IsRefunded, &item.IsDeleted); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_num, idempotency_key, total_qty, gross_cents, vatable_cents,
			vat_exempt_cents, vat_zero_rated_cents, vat_cents, discount_cents, total_cents,
			cash_cents, change_cents, discount_type, payment_method,
			COALESCE(reference_number,''), COALESCE(senior_id,''), COALESCE(pwd_id,''),
			cashier, is_deleted, created_at
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.ReceiptNum, &tx.IdempotencyKey, &tx.TotalQty, &tx.GrossCents,
			&tx.VatableCents, &tx.VatExemptCents, &tx.VatZeroRatedCents, &tx.VatCents,
			&tx.DiscountCents, &tx.TotalCents, &tx.CashCents, &tx.ChangeCents,
			&tx.DiscountType, &tx.PaymentMethod, &tx.ReferenceNumber, &tx.SeniorID,
			&tx.PwdID, &tx.Cashier, &tx.IsDeleted, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		result = append(result, tx)
		ids = append(ids, tx.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, sku, qty, unit_price_cents, total_cents, vat_type,
			vat_cents, net_cents, is_refunded, is_deleted
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemMap := make(map[string][]domain.TransactionItem, len(ids))
	for itemRows.Next() {
		var item domain.TransactionItem
		if err := itemRows.Scan(&item.ID, &item.TransactionID, &item.SKU, &item.Qty, &item.UnitPriceCents, &item.TotalCents, &item.VatType, &item.VatCents, &item.NetCents, &item.IsRefunded, &item.IsDeleted); err != nil {
			return nil, err
		}
		itemMap[item.TransactionID] = append(itemMap[item.TransactionID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Items = itemMap[result[i].ID]
	}
	return result, nil
}

// CreateSale commits a prepared sale. The decrement is guarded in SQL: a line
// only succeeds when the row still holds enough stock, so two terminals racing
// for the last unit cannot both win.
func (s *Store) CreateSale(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.IdempotencyKey == "" || len(tx.Items) == 0 {
		return nil, store.ErrValidation
	}

	if existing, err := s.FindTransactionByIdempotencyKey(ctx, tx.IdempotencyKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, item := range tx.Items {
		if item.Qty < 1 {
			return nil, store.ErrValidation
		}

		var active bool
		err := pgTx.QueryRowContext(ctx, `SELECT active FROM products WHERE sku = $1`, item.SKU).Scan(&active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("sku %s unavailable: %w", item.SKU, store.ErrNotFound)
			}
			return nil, err
		}
		if !active {
			return nil, fmt.Errorf("sku %s unavailable: %w", item.SKU, store.ErrNotFound)
		}

		res, err := pgTx.ExecContext(ctx, `
			UPDATE inventory
			SET qty = qty - $2, updated_at = now()
			WHERE sku = $1 AND qty >= $2
		`, item.SKU, item.Qty)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrInsufficientStock
		}
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, receipt_num, idempotency_key, total_qty, gross_cents, vatable_cents,
			vat_exempt_cents, vat_zero_rated_cents, vat_cents, discount_cents, total_cents,
			cash_cents, change_cents, discount_type, payment_method, reference_number,
			senior_id, pwd_id, cashier, is_deleted, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, tx.ID, tx.ReceiptNum, tx.IdempotencyKey, tx.TotalQty, tx.GrossCents, tx.VatableCents,
		tx.VatExemptCents, tx.VatZeroRatedCents, tx.VatCents, tx.DiscountCents, tx.TotalCents,
		tx.CashCents, tx.ChangeCents, tx.DiscountType, tx.PaymentMethod, nullIfEmpty(tx.ReferenceNumber),
		nullIfEmpty(tx.SeniorID), nullIfEmpty(tx.PwdID), tx.Cashier, tx.IsDeleted, tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.FindTransactionByIdempotencyKey(ctx, tx.IdempotencyKey)
			if lookupErr == nil {
				return existing, nil
			}
			return nil, store.ErrValidation
		}
		return nil, err
	}

	for i := range tx.Items {
		if tx.Items[i].ID == "" {
			tx.Items[i].ID = xid.New("item")
		}
		tx.Items[i].TransactionID = tx.ID

		item := tx.Items[i]
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (
				id, transaction_id, sku, qty, unit_price_cents, total_cents,
				vat_type, vat_cents, net_cents, is_refunded, is_deleted
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, item.ID, item.TransactionID, item.SKU, item.Qty, item.UnitPriceCents, item.TotalCents,
			item.VatType, item.VatCents, item.NetCents, item.IsRefunded, item.IsDeleted)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &tx, nil
}

// RefundItem reverses qty units of one line, restocks them, and rebuilds the
// parent header and every surviving line against the new totals.
func (s *Store) RefundItem(ctx context.Context, receiptNum string, sku string, qty int, reason string, note string, at time.Time) (*domain.RefundResponse, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	tx, err := loadTransaction(ctx, pgTx, "receipt_num", receiptNum, true)
	if err != nil {
		return nil, err
	}
	if tx.IsDeleted {
		return nil, store.ErrNotFound
	}

	itemIdx := -1
	sawRefunded := false
	for i := range tx.Items {
		if tx.Items[i].SKU != sku || tx.Items[i].IsDeleted {
			continue
		}
		if tx.Items[i].IsRefunded {
			sawRefunded = true
			continue
		}
		itemIdx = i
		break
	}
	if itemIdx == -1 {
		// A fully-refunded line exists but has nothing left to return.
		if sawRefunded {
			return nil, store.ErrValidation
		}
		return nil, store.ErrNotFound
	}
	item := &tx.Items[itemIdx]

	if qty < 1 || qty > item.Qty {
		return nil, store.ErrValidation
	}

	unitNet := pos.UnitNet(item.NetCents, item.Qty)
	refundCents := unitNet * int64(qty)

	item.Qty -= qty
	if item.Qty == 0 {
		item.IsRefunded = true
	}
	recomputeHeader(tx)

	if err := persistRecompute(ctx, pgTx, tx); err != nil {
		return nil, err
	}

	refund := domain.Refund{
		ID:                xid.New("rf"),
		TransactionItemID: item.ID,
		SKU:               sku,
		Qty:               qty,
		RefundCents:       refundCents,
		Reason:            reason,
		Note:              note,
		IsDiscounted:      tx.DiscountType != domain.DiscountNone,
		RefundedAt:        at,
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO refunds (
			id, transaction_item_id, sku, qty, refund_cents, reason, note,
			is_discounted, is_deleted, refunded_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, refund.ID, refund.TransactionItemID, refund.SKU, refund.Qty, refund.RefundCents,
		refund.Reason, refund.Note, refund.IsDiscounted, refund.IsDeleted, refund.RefundedAt)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE inventory
		SET qty = qty + $2, updated_at = now()
		WHERE sku = $1
	`, sku, qty)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &domain.RefundResponse{
		Refund:      refund,
		UpdatedItem: *item,
		Transaction: *tx,
	}, nil
}

// VoidTransaction soft-deletes the header, its items, and their refunds, and
// restocks the un-refunded remainder of every line. Quantities already
// refunded were restocked at refund time and are not restocked again.
func (s *Store) VoidTransaction(ctx context.Context, receiptNum string, reason string, at time.Time) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	tx, err := loadTransaction(ctx, pgTx, "receipt_num", receiptNum, true)
	if err != nil {
		return nil, err
	}
	if tx.IsDeleted {
		return nil, store.ErrValidation
	}

	itemIDs := make([]string, 0, len(tx.Items))
	for i := range tx.Items {
		item := &tx.Items[i]
		itemIDs = append(itemIDs, item.ID)
		if item.IsDeleted {
			continue
		}
		if item.Qty > 0 {
			_, err := pgTx.ExecContext(ctx, `
				UPDATE inventory
				SET qty = qty + $2, updated_at = now()
				WHERE sku = $1
			`, item.SKU, item.Qty)
			if err != nil {
				return nil, err
			}
		}
		item.IsDeleted = true
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transaction_items
		SET is_deleted = true
		WHERE transaction_id = $1
	`, tx.ID)
	if err != nil {
		return nil, err
	}

	if len(itemIDs) > 0 {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE refunds
			SET is_deleted = true
			WHERE transaction_item_id = ANY($1)
		`, itemIDs)
		if err != nil {
			return nil, err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET is_deleted = true
		WHERE id = $1
	`, tx.ID)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	tx.IsDeleted = true
	return tx, nil
}

func (s *Store) RecomputeTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	tx, err := loadTransaction(ctx, pgTx, "id", id, true)
	if err != nil {
		return nil, err
	}
	recomputeHeader(tx)

	if err := persistRecompute(ctx, pgTx, tx); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return tx, nil
}

// recomputeHeader rebuilds a transaction's totals from its surviving items
// and re-derives each surviving item's monetary fields against the new
// header. A transaction with every item refunded degrades to zero totals.
func recomputeHeader(tx *domain.Transaction) {
	lines := make([]pos.Line, 0, len(tx.Items))
	for _, item := range tx.Items {
		if item.IsDeleted || item.Qty == 0 {
			continue
		}
		lines = append(lines, pos.Line{
			SKU:            item.SKU,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			VatType:        item.VatType,
		})
	}

	totals := pos.ComputeTotals(lines, tx.CashCents, tx.DiscountType)
	tx.TotalQty = totals.TotalQty
	tx.GrossCents = totals.GrossCents
	tx.VatableCents = totals.VatableCents
	tx.VatExemptCents = totals.VatExemptCents
	tx.VatZeroRatedCents = totals.VatZeroRatedCents
	tx.VatCents = totals.VatCents
	tx.DiscountCents = totals.DiscountCents
	tx.TotalCents = totals.TotalCents
	tx.ChangeCents = totals.ChangeCents

	for i := range tx.Items {
		item := &tx.Items[i]
		if item.IsDeleted || item.Qty == 0 {
			item.TotalCents = 0
			item.NetCents = 0
			item.VatCents = 0
			continue
		}
		item.TotalCents, item.NetCents, item.VatCents = pos.RecomputeItem(
			item.Qty, item.UnitPriceCents, item.VatType, tx.DiscountType,
			totals.GrossCents, totals.TotalCents,
		)
	}
}

// persistRecompute writes back the header totals and every item row after an
// in-memory recompute.
func persistRecompute(ctx context.Context, q querier, tx *domain.Transaction) error {
	_, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET total_qty = $2, gross_cents = $3, vatable_cents = $4, vat_exempt_cents = $5,
			vat_zero_rated_cents = $6, vat_cents = $7, discount_cents = $8, total_cents = $9,
			change_cents = $10
		WHERE id = $1
	`, tx.ID, tx.TotalQty, tx.GrossCents, tx.VatableCents, tx.VatExemptCents,
		tx.VatZeroRatedCents, tx.VatCents, tx.DiscountCents, tx.TotalCents, tx.ChangeCents)
	if err != nil {
		return err
	}

	for _, item := range tx.Items {
		_, err := q.ExecContext(ctx, `
			UPDATE transaction_items
			SET qty = $2, total_cents = $3, vat_cents = $4, net_cents = $5, is_refunded = $6
			WHERE id = $1
		`, item.ID, item.Qty, item.TotalCents, item.VatCents, item.NetCents, item.IsRefunded)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	supplier.Phone = strings.TrimSpace(supplier.Phone)
	if supplier.Name == "" {
		return nil, store.ErrValidation
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES ($1,$2,$3,$4)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	saved := supplier
	return &saved, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), created_at
		FROM suppliers
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 64)
	for rows.Next() {
		var item domain.Supplier
		if err := rows.Scan(&item.ID, &item.Name, &item.Phone, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		suppliers = append(suppliers, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if po.SupplierID == "" || len(po.Items) == 0 {
		return nil, store.ErrValidation
	}
	if po.ID == "" {
		po.ID = xid.New("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	if po.Status == "" {
		po.Status = "draft"
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_id, status, created_at)
		VALUES ($1,$2,$3,$4)
	`, po.ID, po.SupplierID, po.Status, po.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items := make([]domain.PurchaseOrderItem, 0, len(po.Items))
	for _, item := range po.Items {
		item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
		if item.SKU == "" || item.Qty < 1 || item.CostCents < 1 {
			return nil, store.ErrValidation
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, sku, qty, cost_cents)
			VALUES ($1,$2,$3,$4)
		`, po.ID, item.SKU, item.Qty, item.CostCents)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		items = append(items, item)
	}
	po.Items = items

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := po
	return &saved, nil
}

func (s *Store) GetPurchaseOrderByID(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var receivedAt sql.NullTime
	var receivedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supplier_id, status, created_at, received_at, received_by
		FROM purchase_orders
		WHERE id = $1
	`, id).Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedAt, &receivedAt, &receivedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	if receivedAt.Valid {
		at := receivedAt.Time.UTC()
		po.ReceivedAt = &at
	}
	if receivedBy.Valid {
		po.ReceivedBy = receivedBy.String
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY id ASC
	`, po.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseOrderItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseOrderItem
		if err := rows.Scan(&item.SKU, &item.Qty, &item.CostCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	po.Items = items
	return &po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 {
		limit = 200
	}
	status = strings.ToLower(strings.TrimSpace(status))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, status, created_at, received_at, received_by
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.PurchaseOrder, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var po domain.PurchaseOrder
		var receivedAt sql.NullTime
		var receivedBy sql.NullString
		if err := rows.Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedAt, &receivedAt, &receivedBy); err != nil {
			return nil, err
		}
		po.CreatedAt = po.CreatedAt.UTC()
		if receivedAt.Valid {
			at := receivedAt.Time.UTC()
			po.ReceivedAt = &at
		}
		if receivedBy.Valid {
			po.ReceivedBy = receivedBy.String
		}
		result = append(result, po)
		ids = append(ids, po.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT purchase_order_id, sku, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemMap := make(map[string][]domain.PurchaseOrderItem, len(ids))
	for itemRows.Next() {
		var poID string
		var item domain.PurchaseOrderItem
		if err := itemRows.Scan(&poID, &item.SKU, &item.Qty, &item.CostCents); err != nil {
			return nil, err
		}
		itemMap[poID] = append(itemMap[poID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Items = itemMap[result[i].ID]
	}
	return result, nil
}

func (s *Store) ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	receivedBy = strings.TrimSpace(receivedBy)
	if receivedBy == "" {
		receivedBy = "system"
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var po domain.PurchaseOrder
	err = tx.QueryRowContext(ctx, `
		SELECT id, supplier_id, status, created_at
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	if po.Status == "received" || po.Status == "cancelled" {
		return nil, store.ErrValidation
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT sku, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	items := make([]domain.PurchaseOrderItem, 0, 8)
	for itemRows.Next() {
		var item domain.PurchaseOrderItem
		if err := itemRows.Scan(&item.SKU, &item.Qty, &item.CostCents); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()
	if len(items) == 0 {
		return nil, store.ErrValidation
	}
	po.Items = items

	for _, item := range items {
		var currentQty int
		var currentCost int64
		err = tx.QueryRowContext(ctx, `
			SELECT qty, acquisition_cents
			FROM inventory
			WHERE sku = $1
			FOR UPDATE
		`, item.SKU).Scan(&currentQty, &currentCost)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		newCost := weightedCostCents(currentCost, currentQty, item.CostCents, item.Qty)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (sku, qty, acquisition_cents, active, updated_at)
			VALUES ($1,$2,$3,true,$4)
			ON CONFLICT (sku)
			DO UPDATE SET qty = inventory.qty + $2, acquisition_cents = $3, active = true, updated_at = $4
		`, item.SKU, item.Qty, newCost, receivedAt)
		if err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = 'received', received_at = $2, received_by = $3
		WHERE id = $1 AND status <> 'received'
	`, id, receivedAt, receivedBy)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrValidation
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	po.Status = "received"
	po.ReceivedBy = receivedBy
	po.ReceivedAt = &receivedAt
	return &po, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SetUserActive(ctx context.Context, username string, active bool) error {
	username = strings.ToLower(strings.TrimSpace(username))
	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET active = $2, updated_at = now()
		WHERE username = $1
	`, username, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{
		Date:      from.Format("2006-01-02"),
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
		ByCashier: make([]domain.DailyReportCashier, 0, 8),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(gross_cents),0)::bigint,
			COALESCE(SUM(discount_cents),0)::bigint,
			COALESCE(SUM(vat_cents),0)::bigint,
			COALESCE(SUM(vat_exempt_cents),0)::bigint,
			COALESCE(SUM(total_cents),0)::bigint
		FROM transactions
		WHERE created_at >= $1
			AND created_at < $2
			AND is_deleted = false
	`, from, to).Scan(
		&report.Transactions,
		&report.GrossCents,
		&report.DiscountCents,
		&report.VatCents,
		&report.VatExemptCents,
		&report.NetCents,
	)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(refund_cents),0)::bigint
		FROM refunds
		WHERE refunded_at >= $1
			AND refunded_at < $2
			AND is_deleted = false
	`, from, to).Scan(&report.RefundCents)
	if err != nil {
		return report, err
	}

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM transactions
		WHERE created_at >= $1
			AND created_at < $2
			AND is_deleted = false
		GROUP BY payment_method
		ORDER BY payment_method
	`, from, to)
	if err != nil {
		return report, err
	}
	for paymentRows.Next() {
		var row domain.DailyReportPayment
		if err := paymentRows.Scan(&row.PaymentMethod, &row.Transactions, &row.TotalCents); err != nil {
			_ = paymentRows.Close()
			return report, err
		}
		report.ByPayment = append(report.ByPayment, row)
	}
	if err := paymentRows.Err(); err != nil {
		_ = paymentRows.Close()
		return report, err
	}
	_ = paymentRows.Close()

	cashierRows, err := s.db.QueryContext(ctx, `
		SELECT cashier, COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM transactions
		WHERE created_at >= $1
			AND created_at < $2
			AND is_deleted = false
		GROUP BY cashier
		ORDER BY cashier
	`, from, to)
	if err != nil {
		return report, err
	}
	for cashierRows.Next() {
		var row domain.DailyReportCashier
		if err := cashierRows.Scan(&row.Cashier, &row.Transactions, &row.TotalCents); err != nil {
			_ = cashierRows.Close()
			return report, err
		}
		report.ByCashier = append(report.ByCashier, row)
	}
	if err := cashierRows.Err(); err != nil {
		_ = cashierRows.Close()
		return report, err
	}
	_ = cashierRows.Close()

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func weightedCostCents(oldCost int64, oldQty int, incomingCost int64, incomingQty int) int64 {
	if incomingQty <= 0 || incomingCost <= 0 {
		return oldCost
	}
	if oldQty <= 0 || oldCost <= 0 {
		return incomingCost
	}
	totalQty := int64(oldQty + incomingQty)
	totalValue := oldCost*int64(oldQty) + incomingCost*int64(incomingQty)
	weighted := (totalValue + totalQty/2) / totalQty
	if weighted < 1 {
		return 1
	}
	return weighted
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
