package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestRefundItemRecomputesAndRestocks(t *testing.T) {
	databaseURL := os.Getenv("TINDAPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TINDAPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-RF-IT-%d", stamp)
	txID := fmt.Sprintf("tx-rf-it-%d", stamp)
	itemID := fmt.Sprintf("item-rf-it-%d", stamp)
	receiptNum := fmt.Sprintf("OR-RF-IT-%d", stamp)
	idempotencyKey := fmt.Sprintf("idem-rf-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM refunds WHERE transaction_item_id = $1`, itemID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory WHERE sku = $1`, sku)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE sku = $1`, sku)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (sku, name, category, price_cents, vat_type, low_stock_threshold, active, created_at, updated_at)
		VALUES ($1, 'Refund IT Product', 'grocery', 10000, 'vatable', 5, true, now(), now())
	`, sku); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (sku, qty, acquisition_cents, active, updated_at)
		VALUES ($1, 48, 7000, true, now())
		ON CONFLICT (sku)
		DO UPDATE SET qty = 48, updated_at = now()
	`, sku); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	// A paid sale of 2 units at 100.00 each, no discount.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, receipt_num, idempotency_key, total_qty, gross_cents, vatable_cents,
			vat_exempt_cents, vat_zero_rated_cents, vat_cents, discount_cents, total_cents,
			cash_cents, change_cents, discount_type, payment_method, cashier, is_deleted, created_at
		)
		VALUES ($1, $2, $3, 2, 20000, 17857, 0, 0, 2143, 0, 20000, 30000, 10000, 'none', 'cash', 'cashier', false, now())
	`, txID, receiptNum, idempotencyKey); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO transaction_items (
			id, transaction_id, sku, qty, unit_price_cents, total_cents,
			vat_type, vat_cents, net_cents, is_refunded, is_deleted
		)
		VALUES ($1, $2, $3, 2, 10000, 20000, 'vatable', 2143, 20000, false, false)
	`, itemID, txID, sku); err != nil {
		t.Fatalf("insert transaction item: %v", err)
	}

	at := time.Now().UTC()
	resp, err := s.RefundItem(ctx, receiptNum, sku, 1, "damaged", "integration test refund", at)
	if err != nil {
		t.Fatalf("refund item: %v", err)
	}
	if resp.Refund.RefundCents != 10000 {
		t.Fatalf("expected refund 10000, got %d", resp.Refund.RefundCents)
	}
	if resp.Transaction.TotalCents != 10000 {
		t.Fatalf("expected recomputed total 10000, got %d", resp.Transaction.TotalCents)
	}
	if resp.UpdatedItem.Qty != 1 {
		t.Fatalf("expected remaining qty 1, got %d", resp.UpdatedItem.Qty)
	}

	var qty int
	if err := s.db.QueryRowContext(ctx, `
		SELECT qty
		FROM inventory
		WHERE sku = $1
	`, sku).Scan(&qty); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if qty != 49 {
		t.Fatalf("expected stock 49 after refund restock, got %d", qty)
	}

	var headerVat int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT vat_cents
		FROM transactions
		WHERE id = $1
	`, txID).Scan(&headerVat); err != nil {
		t.Fatalf("query transaction: %v", err)
	}
	if headerVat != 1071 {
		t.Fatalf("expected recomputed vat 1071, got %d", headerVat)
	}
}
