package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tindapos/backend/internal/cache"
	"tindapos/backend/internal/domain"
	"tindapos/backend/internal/store"
	"tindapos/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopReceiptCache{}, 60)
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func cashierContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
}

func mustCreateProduct(t *testing.T, svc *Service, sku string, priceCents int64, vatType string, stock int) {
	t.Helper()
	_, err := svc.CreateProduct(adminContext(), domain.ProductCreateRequest{
		SKU:              sku,
		Name:             "Test " + sku,
		Category:         "test",
		PriceCents:       priceCents,
		VatType:          vatType,
		InitialStock:     stock,
		AcquisitionCents: priceCents / 2,
	})
	if err != nil {
		t.Fatalf("create product %s failed: %v", sku, err)
	}
}

func stockOf(t *testing.T, svc *Service, sku string) int {
	t.Helper()
	views, err := svc.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	for _, view := range views {
		if view.SKU == sku {
			return view.Qty
		}
	}
	t.Fatalf("sku %s not found in inventory", sku)
	return 0
}

func TestCheckoutVatableNoDiscount(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)

	resp, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		IdempotencyKey: "idem-vatable",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      30000,
		PaymentMethod:  domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	tx := resp.Transaction
	if tx.GrossCents != 20000 || tx.TotalCents != 20000 {
		t.Fatalf("gross=%d total=%d, want 20000/20000", tx.GrossCents, tx.TotalCents)
	}
	if tx.VatableCents != 17857 || tx.VatCents != 2143 {
		t.Fatalf("vatable=%d vat=%d, want 17857/2143", tx.VatableCents, tx.VatCents)
	}
	if tx.ChangeCents != 10000 {
		t.Fatalf("change=%d, want 10000", tx.ChangeCents)
	}
	if tx.Cashier != "cashier" {
		t.Fatalf("cashier=%s, want cashier", tx.Cashier)
	}
	if stockOf(t, svc, "SKU-TEST-01") != 48 {
		t.Fatalf("expected stock decremented to 48")
	}
}

func TestCheckoutSeniorForcesVatExempt(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)

	resp, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		IdempotencyKey: "idem-senior",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      30000,
		DiscountType:   domain.DiscountSenior,
		SeniorID:       "SC-12345",
		PaymentMethod:  domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	tx := resp.Transaction
	if tx.DiscountCents != 4000 || tx.TotalCents != 16000 {
		t.Fatalf("discount=%d total=%d, want 4000/16000", tx.DiscountCents, tx.TotalCents)
	}
	if tx.VatExemptCents != 16000 || tx.VatCents != 0 || tx.VatableCents != 0 {
		t.Fatalf("senior sale must be fully VAT-exempt, got %+v", tx)
	}
	if tx.ChangeCents != 14000 {
		t.Fatalf("change=%d, want 14000", tx.ChangeCents)
	}
	if len(tx.Items) != 1 || tx.Items[0].NetCents != 16000 || tx.Items[0].VatCents != 0 {
		t.Fatalf("unexpected line allocation: %+v", tx.Items)
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	cases := []struct {
		name string
		req  domain.CheckoutRequest
	}{
		{"empty cart", domain.CheckoutRequest{CashCents: 10000}},
		{"ewallet without reference", domain.CheckoutRequest{
			CartItems:     []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 1}},
			PaymentMethod: domain.PaymentEwallet,
		}},
		{"senior without id", domain.CheckoutRequest{
			CartItems:    []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 1}},
			CashCents:    10000,
			DiscountType: domain.DiscountSenior,
		}},
		{"cash below total", domain.CheckoutRequest{
			CartItems: []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 1}},
			CashCents: 9999,
		}},
		{"unknown sku", domain.CheckoutRequest{
			CartItems: []domain.CartItem{{SKU: "SKU-NOPE-01", Qty: 1}},
			CashCents: 10000,
		}},
	}
	for _, tc := range cases {
		_, err := svc.Checkout(ctx, tc.req)
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	// Nothing persisted, nothing decremented.
	if stockOf(t, svc, "SKU-TEST-01") != 50 {
		t.Fatalf("failed checkouts must not touch inventory")
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	req := domain.CheckoutRequest{
		IdempotencyKey: "idem-replay",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      30000,
		PaymentMethod:  domain.PaymentCash,
	}

	first, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	second, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	if !second.Duplicate {
		t.Fatalf("expected replay to be flagged duplicate")
	}
	if second.Transaction.ReceiptNum != first.Transaction.ReceiptNum {
		t.Fatalf("replay returned a different transaction")
	}
	if stockOf(t, svc, "SKU-TEST-01") != 48 {
		t.Fatalf("replay must not decrement inventory twice")
	}
}

func TestCheckoutInsufficientStockAbortsWholeSale(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-LOW-01", 5000, domain.VatTypeVatable, 1)
	mustCreateProduct(t, svc, "SKU-OK-01", 5000, domain.VatTypeVatable, 10)

	_, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		IdempotencyKey: "idem-short",
		CartItems: []domain.CartItem{
			{SKU: "SKU-OK-01", Qty: 1},
			{SKU: "SKU-LOW-01", Qty: 2},
		},
		CashCents: 20000,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if stockOf(t, svc, "SKU-OK-01") != 10 || stockOf(t, svc, "SKU-LOW-01") != 1 {
		t.Fatalf("aborted sale must not decrement any line")
	}
}

func TestRefundPartialRecomputesTransaction(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-refund",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      30000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	resp, err := svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: checkout.Transaction.ReceiptNum,
		SKU:        "SKU-TEST-01",
		Qty:        1,
		Reason:     domain.RefundReasonCustomerRequest,
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if resp.Refund.RefundCents != 10000 {
		t.Fatalf("refund amount=%d, want 10000", resp.Refund.RefundCents)
	}
	if resp.UpdatedItem.Qty != 1 || resp.UpdatedItem.IsRefunded {
		t.Fatalf("unexpected item state: %+v", resp.UpdatedItem)
	}
	if resp.Transaction.TotalCents != 10000 || resp.Transaction.GrossCents != 10000 {
		t.Fatalf("recomputed totals=%d/%d, want 10000/10000", resp.Transaction.GrossCents, resp.Transaction.TotalCents)
	}
	if resp.Transaction.VatableCents != 8929 || resp.Transaction.VatCents != 1071 {
		t.Fatalf("recomputed vat=%d/%d, want 8929/1071", resp.Transaction.VatableCents, resp.Transaction.VatCents)
	}
	if stockOf(t, svc, "SKU-TEST-01") != 49 {
		t.Fatalf("refund must restock exactly the refunded quantity")
	}
}

func TestRefundQuantityExceedsRemaining(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-over",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 1}},
		CashCents:      10000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	_, err = svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: checkout.Transaction.ReceiptNum,
		SKU:        "SKU-TEST-01",
		Qty:        5,
		Reason:     domain.RefundReasonDamaged,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// No state mutated.
	current, err := svc.GetTransactionByReceipt(ctx, checkout.Transaction.ReceiptNum)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if current.TotalCents != 10000 || current.Items[0].Qty != 1 {
		t.Fatalf("failed refund must not mutate the transaction")
	}
	if stockOf(t, svc, "SKU-TEST-01") != 49 {
		t.Fatalf("failed refund must not restock")
	}
}

func TestRefundFullQuantityFlagsItemAndBlocksFurtherRefunds(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-full",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      20000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	receipt := checkout.Transaction.ReceiptNum

	resp, err := svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: receipt,
		SKU:        "SKU-TEST-01",
		Qty:        2,
		Reason:     domain.RefundReasonWrongItem,
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if !resp.UpdatedItem.IsRefunded || resp.UpdatedItem.Qty != 0 {
		t.Fatalf("full refund must flag the item, got %+v", resp.UpdatedItem)
	}
	if resp.Transaction.TotalCents != 0 || resp.Transaction.GrossCents != 0 {
		t.Fatalf("all-refunded transaction must degrade to zero totals, got %+v", resp.Transaction)
	}

	_, err = svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: receipt,
		SKU:        "SKU-TEST-01",
		Qty:        1,
		Reason:     domain.RefundReasonWrongItem,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("refund on a fully-refunded item must fail validation, got %v", err)
	}
}

func TestSequentialPartialRefundsOnDiscountedSale(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 3350, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-seq",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 3}},
		CashCents:      10050,
		DiscountType:   domain.DiscountPwd,
		PwdID:          "PWD-777",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	receipt := checkout.Transaction.ReceiptNum
	originalTotal := checkout.Transaction.TotalCents
	if originalTotal != 8040 {
		t.Fatalf("total=%d, want 8040", originalTotal)
	}

	var refunded int64
	for i := 0; i < 3; i++ {
		resp, err := svc.RefundItem(ctx, domain.RefundRequest{
			ReceiptNum: receipt,
			SKU:        "SKU-TEST-01",
			Qty:        1,
			Reason:     domain.RefundReasonCustomerRequest,
		})
		if err != nil {
			t.Fatalf("refund %d failed: %v", i+1, err)
		}
		refunded += resp.Refund.RefundCents
		if !resp.Refund.IsDiscounted {
			t.Fatalf("refund on discounted sale must be flagged discounted")
		}
	}

	if refunded != originalTotal {
		t.Fatalf("sequential refunds returned %d, want %d", refunded, originalTotal)
	}
	final, err := svc.GetTransactionByReceipt(ctx, receipt)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if final.TotalCents != 0 || !final.Items[0].IsRefunded {
		t.Fatalf("expected fully-refunded transaction, got %+v", final)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-recompute",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      30000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	first, err := svc.RecomputeTransaction(ctx, checkout.Transaction.ID)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	second, err := svc.RecomputeTransaction(ctx, checkout.Transaction.ID)
	if err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}

	if first.TotalCents != second.TotalCents || first.VatCents != second.VatCents ||
		first.GrossCents != second.GrossCents || first.DiscountCents != second.DiscountCents {
		t.Fatalf("recompute must be idempotent: %+v vs %+v", first, second)
	}
	if first.TotalCents != checkout.Transaction.TotalCents {
		t.Fatalf("recompute without refunds must not change totals")
	}
}

func TestVoidRestocksUnrefundedRemainder(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-void",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      20000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	receipt := checkout.Transaction.ReceiptNum

	if _, err := svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: receipt,
		SKU:        "SKU-TEST-01",
		Qty:        1,
		Reason:     domain.RefundReasonDamaged,
	}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if _, err := svc.VoidTransaction(ctx, domain.VoidTransactionRequest{
		ReceiptNum: receipt,
		Reason:     "wrong scan",
	}); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	// 50 - 2 sold + 1 refunded + 1 void restock of the remainder.
	if got := stockOf(t, svc, "SKU-TEST-01"); got != 50 {
		t.Fatalf("stock=%d, want 50 after void", got)
	}

	if _, err := svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: receipt,
		SKU:        "SKU-TEST-01",
		Qty:        1,
		Reason:     domain.RefundReasonDamaged,
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("refund on voided transaction must be not found, got %v", err)
	}

	if _, err := svc.VoidTransaction(ctx, domain.VoidTransactionRequest{
		ReceiptNum: receipt,
		Reason:     "again",
	}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("double void must fail validation, got %v", err)
	}
}

func TestDailyReportIncludesRefunds(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-report",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      20000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.RefundItem(ctx, domain.RefundRequest{
		ReceiptNum: checkout.Transaction.ReceiptNum,
		SKU:        "SKU-TEST-01",
		Qty:        1,
		Reason:     domain.RefundReasonOvercharge,
	}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, "")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.Transactions != 1 {
		t.Fatalf("transactions=%d, want 1", report.Transactions)
	}
	if report.NetCents != 10000 {
		t.Fatalf("net=%d, want post-refund 10000", report.NetCents)
	}
	if report.RefundCents != 10000 {
		t.Fatalf("refunds=%d, want 10000", report.RefundCents)
	}
	if len(report.ByCashier) != 1 || report.ByCashier[0].Cashier != "cashier" {
		t.Fatalf("unexpected cashier breakdown: %+v", report.ByCashier)
	}
}

func TestPurchaseOrderReceiveIncrementsInventory(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 5)
	ctx := adminContext()

	supplier, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "Aling Nena Trading"})
	if err != nil {
		t.Fatalf("create supplier failed: %v", err)
	}

	po, err := svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		SupplierID: supplier.ID,
		Items:      []domain.PurchaseOrderItem{{SKU: "SKU-TEST-01", Qty: 20, CostCents: 6000}},
	})
	if err != nil {
		t.Fatalf("create purchase order failed: %v", err)
	}
	if po.Status != "draft" {
		t.Fatalf("status=%s, want draft", po.Status)
	}

	received, err := svc.ReceivePurchaseOrder(ctx, po.ID, domain.PurchaseOrderReceiveRequest{})
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if received.Status != "received" || received.ReceivedAt == nil {
		t.Fatalf("unexpected received state: %+v", received)
	}
	if stockOf(t, svc, "SKU-TEST-01") != 25 {
		t.Fatalf("expected inventory incremented by PO quantity")
	}

	if _, err := svc.ReceivePurchaseOrder(ctx, po.ID, domain.PurchaseOrderReceiveRequest{}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("double receive must fail validation, got %v", err)
	}
}

func TestAdminGates(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	if _, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{SKU: "SKU-X", Name: "X", Category: "c", PriceCents: 100}); err == nil {
		t.Fatalf("cashier must not create products")
	}
	if _, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "S"}); err == nil {
		t.Fatalf("cashier must not create suppliers")
	}
	if _, err := svc.StockCount(ctx, domain.StockCountRequest{Items: []domain.StockCountItem{{SKU: "SKU-BIGAS-01", CountedQty: 1}}}); err == nil {
		t.Fatalf("cashier must not run stock counts")
	}
}

func TestStockCountAdjustsInventory(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 10)

	resp, err := svc.StockCount(adminContext(), domain.StockCountRequest{
		Notes: "monthly count",
		Items: []domain.StockCountItem{{SKU: "SKU-TEST-01", CountedQty: 7}},
	})
	if err != nil {
		t.Fatalf("stock count failed: %v", err)
	}
	if len(resp.Adjustments) != 1 || resp.Adjustments[0].DeltaQty != -3 {
		t.Fatalf("unexpected adjustments: %+v", resp.Adjustments)
	}
	if stockOf(t, svc, "SKU-TEST-01") != 7 {
		t.Fatalf("inventory must be set to the counted quantity")
	}
}

func TestHardwareReceiptCarriesVatBreakdown(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "SKU-TEST-01", 10000, domain.VatTypeVatable, 50)
	ctx := cashierContext()

	checkout, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-receipt",
		CartItems:      []domain.CartItem{{SKU: "SKU-TEST-01", Qty: 2}},
		CashCents:      30000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	receipt, err := svc.BuildHardwareReceipt(ctx, domain.HardwareReceiptRequest{ReceiptNum: checkout.Transaction.ReceiptNum})
	if err != nil {
		t.Fatalf("build receipt failed: %v", err)
	}
	if receipt.EscposBase64 == "" {
		t.Fatalf("expected ESC/POS payload")
	}
	for _, want := range []string{"VATable     : 178.57", "VAT 12%     : 21.43", "Change      : 100.00"} {
		if !strings.Contains(receipt.PreviewText, want) {
			t.Fatalf("receipt preview missing %q:\n%s", want, receipt.PreviewText)
		}
	}
}
