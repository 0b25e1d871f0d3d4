package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tindapos/backend/internal/cache"
	"tindapos/backend/internal/domain"
	"tindapos/backend/internal/pos"
	"tindapos/backend/internal/store"
	"tindapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	receipts   cache.ReceiptCache
	receiptTTL time.Duration
}

func New(repo store.Repository, receipts cache.ReceiptCache, receiptTTLSeconds int) *Service {
	if receipts == nil {
		receipts = cache.NoopReceiptCache{}
	}
	if receiptTTLSeconds < 1 {
		receiptTTLSeconds = 60
	}

	return &Service{
		repo:       repo,
		receipts:   receipts,
		receiptTTL: time.Duration(receiptTTLSeconds) * time.Second,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.VatType == "" {
		req.VatType = domain.VatTypeVatable
	}

	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrValidation
	}
	if req.PriceCents < 1 || req.InitialStock < 0 || req.AcquisitionCents < 0 || req.LowStockThreshold < 0 {
		return domain.Product{}, store.ErrValidation
	}
	if !domain.IsVatType(req.VatType) {
		return domain.Product{}, store.ErrValidation
	}

	product := domain.Product{
		SKU:               req.SKU,
		Name:              req.Name,
		Category:          req.Category,
		PriceCents:        req.PriceCents,
		VatType:           req.VatType,
		LowStockThreshold: req.LowStockThreshold,
		Active:            true,
	}

	created, err := s.repo.CreateProduct(ctx, product, req.InitialStock, req.AcquisitionCents)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.SKU, fmt.Sprintf("name=%s,price=%d,vat=%s,stock=%d", created.Name, created.PriceCents, created.VatType, req.InitialStock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sku string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, store.ErrValidation
	}

	existing, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrValidation
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.VatType != nil {
		if !domain.IsVatType(*req.VatType) {
			return domain.Product{}, store.ErrValidation
		}
		updated.VatType = *req.VatType
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	if existing.PriceCents != saved.PriceCents {
		if err := s.repo.CreatePriceHistory(ctx, domain.ProductPriceHistory{
			ID:            xid.New("ph"),
			SKU:           saved.SKU,
			OldPriceCents: existing.PriceCents,
			NewPriceCents: saved.PriceCents,
			ChangedBy:     actor.Username,
			ChangedAt:     time.Now().UTC(),
		}); err != nil {
			log.Printf("[service] WARN: failed to record price history sku=%s: %v", saved.SKU, err)
		}
	}

	s.logAudit(ctx, "product_update", "product", saved.SKU, fmt.Sprintf("active=%t,price=%d,vat=%s", saved.Active, saved.PriceCents, saved.VatType))
	return *saved, nil
}

func (s *Service) ListProductPriceHistory(ctx context.Context, sku string, limit int) ([]domain.ProductPriceHistory, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, store.ErrValidation
	}
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListPriceHistory(ctx, sku, limit)
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryView, error) {
	records, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, err
	}

	skus := make([]string, 0, len(records))
	for _, record := range records {
		skus = append(skus, record.SKU)
	}
	products, err := s.repo.GetProductsBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}

	views := make([]domain.InventoryView, 0, len(records))
	for _, record := range records {
		product, ok := products[record.SKU]
		if !ok {
			continue
		}
		views = append(views, domain.InventoryView{
			SKU:              record.SKU,
			Name:             product.Name,
			Category:         product.Category,
			Qty:              record.Qty,
			AcquisitionCents: record.AcquisitionCents,
			LowStock:         record.Qty <= product.LowStockThreshold,
		})
	}
	return views, nil
}

func (s *Service) ReceiveDelivery(ctx context.Context, req domain.DeliveryReceiptRequest) (domain.InventoryRecord, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.InventoryRecord{}, fmt.Errorf("admin role required")
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.SKU == "" || req.Qty < 1 || req.AcquisitionCents < 0 {
		return domain.InventoryRecord{}, store.ErrValidation
	}

	record, err := s.repo.ReceiveDelivery(ctx, req.SKU, req.Qty, req.AcquisitionCents)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	s.logAudit(ctx, "delivery_receive", "inventory", req.SKU, fmt.Sprintf("qty=%d,cost=%d,note=%s", req.Qty, req.AcquisitionCents, strings.TrimSpace(req.Note)))
	return *record, nil
}

func (s *Service) StockCount(ctx context.Context, req domain.StockCountRequest) (domain.StockCountResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockCountResponse{}, fmt.Errorf("admin role required")
	}
	if len(req.Items) == 0 {
		return domain.StockCountResponse{}, store.ErrValidation
	}

	skus := make([]string, 0, len(req.Items))
	counted := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		sku := strings.ToUpper(strings.TrimSpace(item.SKU))
		if sku == "" || item.CountedQty < 0 {
			return domain.StockCountResponse{}, store.ErrValidation
		}
		if _, dup := counted[sku]; !dup {
			skus = append(skus, sku)
		}
		counted[sku] = item.CountedQty
	}

	systemStock, err := s.repo.GetStockMap(ctx, skus)
	if err != nil {
		return domain.StockCountResponse{}, err
	}

	adjustments := make([]domain.StockCountAdjustment, 0, len(skus))
	for _, sku := range skus {
		adjustments = append(adjustments, domain.StockCountAdjustment{
			SKU:        sku,
			SystemQty:  systemStock[sku],
			CountedQty: counted[sku],
			DeltaQty:   counted[sku] - systemStock[sku],
		})
	}

	if err := s.repo.AdjustStock(ctx, adjustments); err != nil {
		return domain.StockCountResponse{}, err
	}

	countID := xid.New("count")
	s.logAudit(ctx, "stock_count", "inventory", countID, fmt.Sprintf("items=%d,notes=%s", len(adjustments), strings.TrimSpace(req.Notes)))

	return domain.StockCountResponse{
		CountID:     countID,
		Notes:       req.Notes,
		Adjustments: adjustments,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Checkout validates the cart and payment, prices every line from the current
// catalog, and commits the sale as one storage unit. Retried requests that
// carry the same idempotency key get the already-committed transaction back.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.DiscountType == "" {
		req.DiscountType = domain.DiscountNone
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("idem")
	}

	if !domain.IsDiscountType(req.DiscountType) || !domain.IsPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, store.ErrValidation
	}
	if req.PaymentMethod != domain.PaymentCash && strings.TrimSpace(req.ReferenceNumber) == "" {
		return domain.CheckoutResponse{}, store.ErrValidation
	}
	if req.DiscountType == domain.DiscountSenior && strings.TrimSpace(req.SeniorID) == "" {
		return domain.CheckoutResponse{}, store.ErrValidation
	}
	if req.DiscountType == domain.DiscountPwd && strings.TrimSpace(req.PwdID) == "" {
		return domain.CheckoutResponse{}, store.ErrValidation
	}

	normalized := normalizeCart(req.CartItems)
	if len(normalized) == 0 {
		return domain.CheckoutResponse{}, store.ErrValidation
	}

	if existing, err := s.repo.FindTransactionByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return domain.CheckoutResponse{Transaction: *existing, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	skus := make([]string, 0, len(normalized))
	for _, item := range normalized {
		skus = append(skus, item.SKU)
	}
	products, err := s.repo.GetProductsBySKUs(ctx, skus)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	lines := make([]pos.Line, 0, len(normalized))
	for _, item := range normalized {
		product, exists := products[item.SKU]
		if !exists {
			return domain.CheckoutResponse{}, fmt.Errorf("unknown or inactive sku %s: %w", item.SKU, store.ErrValidation)
		}
		lines = append(lines, pos.Line{
			SKU:            item.SKU,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
			VatType:        product.VatType,
		})
	}

	totals := pos.ComputeTotals(lines, req.CashCents, req.DiscountType)

	cashCents := req.CashCents
	changeCents := totals.ChangeCents
	if req.PaymentMethod == domain.PaymentCash {
		if cashCents < totals.TotalCents {
			return domain.CheckoutResponse{}, fmt.Errorf("cash tendered below total: %w", store.ErrValidation)
		}
	} else {
		cashCents = totals.TotalCents
		changeCents = 0
	}

	now := time.Now().UTC()
	items := make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		lineTotal := line.UnitPriceCents * int64(line.Qty)
		netCents, vatCents := pos.AllocateLine(lineTotal, line.VatType, req.DiscountType, totals.GrossCents, totals.TotalCents)
		items = append(items, domain.TransactionItem{
			ID:             xid.New("item"),
			SKU:            line.SKU,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     lineTotal,
			VatType:        line.VatType,
			VatCents:       vatCents,
			NetCents:       netCents,
		})
	}

	actor, _ := ActorFromContext(ctx)
	if actor.Username == "" {
		actor.Username = "system"
	}

	tx := domain.Transaction{
		ID:                xid.New("tx"),
		ReceiptNum:        newReceiptNum(now),
		IdempotencyKey:    req.IdempotencyKey,
		TotalQty:          totals.TotalQty,
		GrossCents:        totals.GrossCents,
		VatableCents:      totals.VatableCents,
		VatExemptCents:    totals.VatExemptCents,
		VatZeroRatedCents: totals.VatZeroRatedCents,
		VatCents:          totals.VatCents,
		DiscountCents:     totals.DiscountCents,
		TotalCents:        totals.TotalCents,
		CashCents:         cashCents,
		ChangeCents:       changeCents,
		DiscountType:      req.DiscountType,
		PaymentMethod:     req.PaymentMethod,
		ReferenceNumber:   strings.TrimSpace(req.ReferenceNumber),
		SeniorID:          strings.TrimSpace(req.SeniorID),
		PwdID:             strings.TrimSpace(req.PwdID),
		Cashier:           actor.Username,
		CreatedAt:         now,
		Items:             items,
	}

	created, err := s.repo.CreateSale(ctx, tx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	duplicate := created.ID != tx.ID
	if !duplicate {
		s.logAudit(ctx, "checkout", "transaction", created.ReceiptNum, fmt.Sprintf("total=%d,discount=%s,payment=%s,items=%d", created.TotalCents, created.DiscountType, created.PaymentMethod, len(created.Items)))
	}

	return domain.CheckoutResponse{Transaction: *created, Duplicate: duplicate}, nil
}

// RefundItem reverses part of one purchased line. The storage layer does the
// arithmetic and the restock atomically; this layer validates the request,
// drops the cached receipt, and records the audit trail.
func (s *Service) RefundItem(ctx context.Context, req domain.RefundRequest) (domain.RefundResponse, error) {
	req.ReceiptNum = strings.TrimSpace(req.ReceiptNum)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Reason = strings.ToLower(strings.TrimSpace(req.Reason))
	if req.ReceiptNum == "" || req.SKU == "" || req.Qty < 1 {
		return domain.RefundResponse{}, store.ErrValidation
	}
	if !domain.IsRefundReason(req.Reason) {
		return domain.RefundResponse{}, fmt.Errorf("unknown refund reason %q: %w", req.Reason, store.ErrValidation)
	}

	resp, err := s.repo.RefundItem(ctx, req.ReceiptNum, req.SKU, req.Qty, req.Reason, strings.TrimSpace(req.Note), time.Now().UTC())
	if err != nil {
		return domain.RefundResponse{}, err
	}

	if err := s.receipts.Invalidate(ctx, req.ReceiptNum); err != nil {
		log.Printf("[service] WARN: failed to invalidate receipt cache receipt=%s: %v", req.ReceiptNum, err)
	}

	s.logAudit(ctx, "refund_item", "transaction", req.ReceiptNum, fmt.Sprintf("sku=%s,qty=%d,amount=%d,reason=%s", req.SKU, req.Qty, resp.Refund.RefundCents, req.Reason))
	return *resp, nil
}

func (s *Service) VoidTransaction(ctx context.Context, req domain.VoidTransactionRequest) (domain.VoidTransactionResponse, error) {
	req.ReceiptNum = strings.TrimSpace(req.ReceiptNum)
	if req.ReceiptNum == "" {
		return domain.VoidTransactionResponse{}, store.ErrValidation
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "unspecified"
	}

	voidedAt := time.Now().UTC()
	tx, err := s.repo.VoidTransaction(ctx, req.ReceiptNum, req.Reason, voidedAt)
	if err != nil {
		return domain.VoidTransactionResponse{}, err
	}

	if err := s.receipts.Invalidate(ctx, req.ReceiptNum); err != nil {
		log.Printf("[service] WARN: failed to invalidate receipt cache receipt=%s: %v", req.ReceiptNum, err)
	}

	s.logAudit(ctx, "void_transaction", "transaction", tx.ReceiptNum, req.Reason)

	return domain.VoidTransactionResponse{
		ReceiptNum: tx.ReceiptNum,
		VoidedAt:   voidedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) RecomputeTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Transaction{}, store.ErrValidation
	}
	tx, err := s.repo.RecomputeTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := s.receipts.Invalidate(ctx, tx.ReceiptNum); err != nil {
		log.Printf("[service] WARN: failed to invalidate receipt cache receipt=%s: %v", tx.ReceiptNum, err)
	}
	return *tx, nil
}

func (s *Service) GetTransactionByReceipt(ctx context.Context, receiptNum string) (domain.Transaction, error) {
	receiptNum = strings.TrimSpace(receiptNum)
	if receiptNum == "" {
		return domain.Transaction{}, store.ErrValidation
	}

	if cached, ok, err := s.receipts.Get(ctx, receiptNum); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: receipt cache read failed receipt=%s: %v", receiptNum, err)
	}

	tx, err := s.repo.GetTransactionByReceipt(ctx, receiptNum)
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := s.receipts.Set(ctx, receiptNum, tx, s.receiptTTL); err != nil {
		log.Printf("[service] WARN: receipt cache write failed receipt=%s: %v", receiptNum, err)
	}
	return *tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, date string, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}
	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, from, to, limit)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Supplier{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrValidation
	}

	supplier := domain.Supplier{
		ID:        xid.New("sup"),
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: time.Now().UTC(),
	}

	saved, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.PurchaseOrder{}, fmt.Errorf("admin role required")
	}
	if req.SupplierID == "" || len(req.Items) == 0 {
		return domain.PurchaseOrder{}, store.ErrValidation
	}

	normalizedItems := make([]domain.PurchaseOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
		if item.SKU == "" || item.Qty < 1 || item.CostCents < 1 {
			return domain.PurchaseOrder{}, store.ErrValidation
		}
		normalizedItems = append(normalizedItems, item)
	}

	po := domain.PurchaseOrder{
		ID:         xid.New("po"),
		SupplierID: req.SupplierID,
		Status:     "draft",
		CreatedAt:  time.Now().UTC(),
		Items:      normalizedItems,
	}

	saved, err := s.repo.CreatePurchaseOrder(ctx, po)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.logAudit(ctx, "purchase_order_create", "purchase_order", saved.ID, fmt.Sprintf("supplier=%s,items=%d", saved.SupplierID, len(saved.Items)))
	return *saved, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string) ([]domain.PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx, strings.ToLower(strings.TrimSpace(status)), 200)
}

func (s *Service) ReceivePurchaseOrder(ctx context.Context, id string, req domain.PurchaseOrderReceiveRequest) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.PurchaseOrder{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PurchaseOrder{}, store.ErrValidation
	}
	req.ReceivedBy = strings.TrimSpace(req.ReceivedBy)
	if req.ReceivedBy == "" {
		req.ReceivedBy = actor.Username
	}

	received, err := s.repo.ReceivePurchaseOrder(ctx, id, req.ReceivedBy, time.Now().UTC())
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.logAudit(ctx, "purchase_order_receive", "purchase_order", received.ID, fmt.Sprintf("received_by=%s", req.ReceivedBy))
	return *received, nil
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	from, to, err := dayWindow(date)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report, err := s.repo.GetDailyReport(ctx, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report.Date = from.Format("2006-01-02")
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	from, to, err := dayWindow(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// DetectOperationalAnomalies scans the day's audit trail for patterns worth a
// manager's attention: refund or void spikes per actor and repeated stock
// counts.
func (s *Service) DetectOperationalAnomalies(ctx context.Context, date string) (domain.OperationalAlertResponse, error) {
	logs, err := s.ListAuditLogs(ctx, date, 500)
	if err != nil {
		return domain.OperationalAlertResponse{}, err
	}

	refundByActor := map[string]int{}
	voidByActor := map[string]int{}
	stockCountBatches := 0

	for _, entry := range logs {
		switch entry.Action {
		case "refund_item":
			refundByActor[entry.ActorUsername]++
		case "void_transaction":
			voidByActor[entry.ActorUsername]++
		case "stock_count":
			stockCountBatches++
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	alerts := make([]domain.OperationalAlert, 0, 8)
	for actor, count := range refundByActor {
		if count >= 3 {
			alerts = append(alerts, domain.OperationalAlert{
				ID:          xid.New("alert"),
				Code:        "refund_spike",
				Severity:    "high",
				Title:       "Refund volume spike",
				Description: fmt.Sprintf("Cashier %s processed %d refunds in one day.", actor, count),
				MetricValue: float64(count),
				Threshold:   3,
				CreatedAt:   now,
			})
		}
	}
	for actor, count := range voidByActor {
		if count >= 2 {
			alerts = append(alerts, domain.OperationalAlert{
				ID:          xid.New("alert"),
				Code:        "void_spike",
				Severity:    "high",
				Title:       "Void volume spike",
				Description: fmt.Sprintf("Actor %s voided %d transactions in one day.", actor, count),
				MetricValue: float64(count),
				Threshold:   2,
				CreatedAt:   now,
			})
		}
	}
	if stockCountBatches >= 3 {
		alerts = append(alerts, domain.OperationalAlert{
			ID:          xid.New("alert"),
			Code:        "stock_count_frequency",
			Severity:    "medium",
			Title:       "Frequent stock counts",
			Description: fmt.Sprintf("Stock count was run %d times today.", stockCountBatches),
			MetricValue: float64(stockCountBatches),
			Threshold:   3,
			CreatedAt:   now,
		})
	}

	reportDate := strings.TrimSpace(date)
	if reportDate == "" {
		reportDate = time.Now().UTC().Format("2006-01-02")
	}

	return domain.OperationalAlertResponse{Date: reportDate, Alerts: alerts}, nil
}

func (s *Service) BuildHardwareReceipt(ctx context.Context, req domain.HardwareReceiptRequest) (domain.HardwareReceiptResponse, error) {
	req.ReceiptNum = strings.TrimSpace(req.ReceiptNum)
	if req.ReceiptNum == "" {
		return domain.HardwareReceiptResponse{}, store.ErrValidation
	}
	tx, err := s.GetTransactionByReceipt(ctx, req.ReceiptNum)
	if err != nil {
		return domain.HardwareReceiptResponse{}, err
	}

	lines := []string{
		"TindaPOS",
		"========================",
		"OR: " + tx.ReceiptNum,
		"Cashier: " + tx.Cashier,
		"Date: " + tx.CreatedAt.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, item := range tx.Items {
		if item.IsDeleted || item.Qty == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s x%d", item.SKU, item.Qty))
		lines = append(lines, "  "+pesos(item.TotalCents))
	}
	lines = append(lines,
		"------------------------",
		"Gross       : "+pesos(tx.GrossCents),
		"Discount    : "+pesos(tx.DiscountCents),
		"Total       : "+pesos(tx.TotalCents),
		"Cash        : "+pesos(tx.CashCents),
		"Change      : "+pesos(tx.ChangeCents),
		"------------------------",
		"VATable     : "+pesos(tx.VatableCents),
		"VAT-Exempt  : "+pesos(tx.VatExemptCents),
		"Zero-Rated  : "+pesos(tx.VatZeroRatedCents),
		"VAT 12%     : "+pesos(tx.VatCents),
		"========================",
		"Salamat po!",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.HardwareReceiptResponse{
		ReceiptNum:   tx.ReceiptNum,
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		PreviewText:  strings.Join(lines, "\n"),
		FileName:     fmt.Sprintf("receipt-%s.bin", tx.ReceiptNum),
	}, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func normalizeCart(items []domain.CartItem) []domain.CartItem {
	agg := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		sku := strings.ToUpper(strings.TrimSpace(item.SKU))
		if sku == "" || item.Qty < 1 {
			continue
		}
		if _, seen := agg[sku]; !seen {
			order = append(order, sku)
		}
		agg[sku] += item.Qty
	}

	normalized := make([]domain.CartItem, 0, len(agg))
	for _, sku := range order {
		normalized = append(normalized, domain.CartItem{SKU: sku, Qty: agg[sku]})
	}
	return normalized
}

// newReceiptNum builds the human-facing receipt number. Time-based with a
// short random suffix; uniqueness is enforced by the store, not here.
func newReceiptNum(at time.Time) string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("OR-%s", at.Format("20060102-150405.000000000"))
	}
	return fmt.Sprintf("OR-%s-%s", at.Format("20060102-150405"), strings.ToUpper(hex.EncodeToString(buf)))
}

func dayWindow(date string) (time.Time, time.Time, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrValidation
		}
		day = parsed.UTC()
	}
	return day, day.Add(24 * time.Hour), nil
}

func pesos(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
