package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tindapos/backend/internal/domain"
	"tindapos/backend/internal/pos"
	"tindapos/backend/internal/store"
	"tindapos/backend/internal/xid"
)

type Store struct {
	mu                    sync.RWMutex
	products              map[string]domain.Product
	inventory             map[string]domain.InventoryRecord
	transactionsByID      map[string]*domain.Transaction
	transactionsByReceipt map[string]*domain.Transaction
	transactionsByIdem    map[string]*domain.Transaction
	refunds               []domain.Refund
	priceHistoryBySKU     map[string][]domain.ProductPriceHistory
	suppliersByID         map[string]domain.Supplier
	purchaseOrdersByID    map[string]domain.PurchaseOrder
	usersByUsername       map[string]domain.UserAccount
	auditLogs             []domain.AuditLog
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{SKU: "SKU-BIGAS-01", Name: "Sinandomeng Rice 5kg", Category: "grocery", PriceCents: 28500, VatType: domain.VatTypeExempt, LowStockThreshold: 10, Active: true},
		{SKU: "SKU-ITLOG-01", Name: "Itlog Tray 12pc", Category: "grocery", PriceCents: 10900, VatType: domain.VatTypeExempt, LowStockThreshold: 10, Active: true},
		{SKU: "SKU-GATAS-01", Name: "UHT Milk 1L", Category: "dairy", PriceCents: 9800, VatType: domain.VatTypeVatable, LowStockThreshold: 12, Active: true},
		{SKU: "SKU-PANDESAL-01", Name: "Pandesal 10pc", Category: "bakery", PriceCents: 5500, VatType: domain.VatTypeVatable, LowStockThreshold: 8, Active: true},
		{SKU: "SKU-KAPE-01", Name: "3-in-1 Coffee Sachet", Category: "beverage", PriceCents: 1200, VatType: domain.VatTypeVatable, LowStockThreshold: 30, Active: true},
		{SKU: "SKU-ASUKAL-01", Name: "Washed Sugar 1kg", Category: "grocery", PriceCents: 8900, VatType: domain.VatTypeVatable, LowStockThreshold: 10, Active: true},
		{SKU: "SKU-TUBIG-01", Name: "Purified Water 500ml", Category: "beverage", PriceCents: 1500, VatType: domain.VatTypeVatable, LowStockThreshold: 24, Active: true},
		{SKU: "SKU-CHICHA-01", Name: "Banana Chips 100g", Category: "snack", PriceCents: 6500, VatType: domain.VatTypeVatable, LowStockThreshold: 15, Active: true},
		{SKU: "SKU-SABON-01", Name: "Bath Soap 90g", Category: "household", PriceCents: 4200, VatType: domain.VatTypeVatable, LowStockThreshold: 15, Active: true},
		{SKU: "SKU-SHAMPOO-01", Name: "Shampoo Sachet", Category: "household", PriceCents: 900, VatType: domain.VatTypeVatable, LowStockThreshold: 40, Active: true},
		{SKU: "SKU-PASALUBONG-01", Name: "Pasalubong Export Pack", Category: "souvenir", PriceCents: 35000, VatType: domain.VatTypeZeroRated, LowStockThreshold: 5, Active: true},
	}

	now := time.Now().UTC()
	productMap := make(map[string]domain.Product, len(products))
	inventory := make(map[string]domain.InventoryRecord, len(products))
	for _, p := range products {
		productMap[p.SKU] = p
		inventory[p.SKU] = domain.InventoryRecord{
			SKU:              p.SKU,
			Qty:              120,
			AcquisitionCents: p.PriceCents * 7 / 10,
			Active:           true,
			UpdatedAt:        now,
		}
	}

	return &Store{
		products:              productMap,
		inventory:             inventory,
		transactionsByID:      make(map[string]*domain.Transaction),
		transactionsByReceipt: make(map[string]*domain.Transaction),
		transactionsByIdem:    make(map[string]*domain.Transaction),
		refunds:               make([]domain.Refund, 0, 64),
		priceHistoryBySKU:     make(map[string][]domain.ProductPriceHistory),
		suppliersByID:         make(map[string]domain.Supplier),
		purchaseOrdersByID:    make(map[string]domain.PurchaseOrder),
		usersByUsername:       seedUsers(),
		auditLogs:             make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, initialStock int, acquisitionCents int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if !domain.IsVatType(product.VatType) {
		return nil, store.ErrValidation
	}
	if initialStock < 0 || acquisitionCents < 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[product.SKU]; exists {
		return nil, store.ErrValidation
	}

	product.Active = true
	s.products[product.SKU] = product
	s.inventory[product.SKU] = domain.InventoryRecord{
		SKU:              product.SKU,
		Qty:              initialStock,
		AcquisitionCents: acquisitionCents,
		Active:           true,
		UpdatedAt:        time.Now().UTC(),
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrValidation
	}
	if !domain.IsVatType(product.VatType) {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[product.SKU]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.SKU] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(_ context.Context, skus []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(skus))
	for _, sku := range skus {
		if p, ok := s.products[sku]; ok && p.Active {
			result[sku] = p
		}
	}
	return result, nil
}

func (s *Store) CreatePriceHistory(_ context.Context, entry domain.ProductPriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	s.priceHistoryBySKU[entry.SKU] = append(s.priceHistoryBySKU[entry.SKU], entry)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, sku string, limit int) ([]domain.ProductPriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.priceHistoryBySKU[sku]
	if len(history) == 0 {
		return []domain.ProductPriceHistory{}, nil
	}

	result := make([]domain.ProductPriceHistory, len(history))
	copy(result, history)
	slices.SortFunc(result, func(a, b domain.ProductPriceHistory) int {
		if a.ChangedAt.Equal(b.ChangedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.ChangedAt.After(b.ChangedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListInventory(_ context.Context) ([]domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.InventoryRecord, 0, len(s.inventory))
	for _, record := range s.inventory {
		records = append(records, record)
	}
	slices.SortFunc(records, func(a, b domain.InventoryRecord) int {
		return cmpString(a.SKU, b.SKU)
	})
	return records, nil
}

func (s *Store) GetStockMap(_ context.Context, skus []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stockMap := make(map[string]int, len(skus))
	for _, sku := range skus {
		stockMap[sku] = s.inventory[sku].Qty
	}
	return stockMap, nil
}

func (s *Store) ReceiveDelivery(_ context.Context, sku string, qty int, acquisitionCents int64) (*domain.InventoryRecord, error) {
	if sku == "" || qty < 1 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[sku]; !exists {
		return nil, store.ErrNotFound
	}
	record := s.inventory[sku]
	record.SKU = sku
	record.Active = true
	if acquisitionCents > 0 {
		record.AcquisitionCents = weightedCostCents(record.AcquisitionCents, record.Qty, acquisitionCents, qty)
	}
	record.Qty += qty
	record.UpdatedAt = time.Now().UTC()
	s.inventory[sku] = record

	updated := record
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, adjustments []domain.StockCountAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, adj := range adjustments {
		if _, exists := s.products[adj.SKU]; !exists {
			return fmt.Errorf("sku %s unavailable: %w", adj.SKU, store.ErrNotFound)
		}
		if adj.CountedQty < 0 {
			return store.ErrValidation
		}
	}
	now := time.Now().UTC()
	for _, adj := range adjustments {
		record := s.inventory[adj.SKU]
		record.SKU = adj.SKU
		record.Qty = adj.CountedQty
		record.UpdatedAt = now
		s.inventory[adj.SKU] = record
	}
	return nil
}

func (s *Store) FindTransactionByIdempotencyKey(_ context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByReceipt(_ context.Context, receiptNum string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByReceipt[receiptNum]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactionsByID {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CreateSale commits a prepared sale: replay by idempotency key, guarded
// inventory decrement per line, then header and items saved together. The
// whole operation runs under one write lock so a failed stock check mutates
// nothing.
func (s *Store) CreateSale(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.IdempotencyKey == "" || len(tx.Items) == 0 {
		return nil, store.ErrValidation
	}
	if existing, ok := s.transactionsByIdem[tx.IdempotencyKey]; ok {
		return cloneTransaction(existing), nil
	}
	if _, ok := s.transactionsByReceipt[tx.ReceiptNum]; ok {
		return nil, store.ErrValidation
	}

	for _, item := range tx.Items {
		if item.Qty < 1 {
			return nil, store.ErrValidation
		}
		product, exists := s.products[item.SKU]
		if !exists || !product.Active {
			return nil, fmt.Errorf("sku %s unavailable: %w", item.SKU, store.ErrNotFound)
		}
		if s.inventory[item.SKU].Qty < item.Qty {
			return nil, store.ErrInsufficientStock
		}
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	now := time.Now().UTC()
	for i := range tx.Items {
		if tx.Items[i].ID == "" {
			tx.Items[i].ID = xid.New("item")
		}
		tx.Items[i].TransactionID = tx.ID

		record := s.inventory[tx.Items[i].SKU]
		record.Qty -= tx.Items[i].Qty
		record.UpdatedAt = now
		s.inventory[tx.Items[i].SKU] = record
	}

	saved := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = saved
	s.transactionsByReceipt[tx.ReceiptNum] = saved
	s.transactionsByIdem[tx.IdempotencyKey] = saved

	return cloneTransaction(saved), nil
}

// RefundItem reverses qty units of one line: prices the refund off the line's
// current net, shrinks the line, restocks, and rebuilds the header from the
// surviving lines. One write lock covers the whole unit.
func (s *Store) RefundItem(_ context.Context, receiptNum string, sku string, qty int, reason string, note string, at time.Time) (*domain.RefundResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByReceipt[receiptNum]
	if !ok || tx.IsDeleted {
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
	if err := recomputeHeader(tx); err != nil {
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
	s.refunds = append(s.refunds, refund)

	record := s.inventory[sku]
	record.Qty += qty
	record.UpdatedAt = at
	s.inventory[sku] = record

	return &domain.RefundResponse{
		Refund:      refund,
		UpdatedItem: *item,
		Transaction: *cloneTransaction(tx),
	}, nil
}

// VoidTransaction soft-deletes the header, its items, and their refunds, and
// restocks the un-refunded remainder of every line. Quantities already
// refunded were restocked at refund time and are not restocked again.
func (s *Store) VoidTransaction(_ context.Context, receiptNum string, reason string, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByReceipt[receiptNum]
	if !ok {
		return nil, store.ErrNotFound
	}
	if tx.IsDeleted {
		return nil, store.ErrValidation
	}

	itemIDs := make(map[string]struct{}, len(tx.Items))
	for i := range tx.Items {
		item := &tx.Items[i]
		itemIDs[item.ID] = struct{}{}
		if item.IsDeleted {
			continue
		}
		if item.Qty > 0 {
			record := s.inventory[item.SKU]
			record.Qty += item.Qty
			record.UpdatedAt = at
			s.inventory[item.SKU] = record
		}
		item.IsDeleted = true
	}
	for i := range s.refunds {
		if _, ok := itemIDs[s.refunds[i].TransactionItemID]; ok {
			s.refunds[i].IsDeleted = true
		}
	}
	tx.IsDeleted = true

	return cloneTransaction(tx), nil
}

func (s *Store) RecomputeTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := recomputeHeader(tx); err != nil {
		return nil, err
	}
	return cloneTransaction(tx), nil
}

// recomputeHeader rebuilds a transaction's totals from its surviving items
// and re-derives each surviving item's monetary fields against the new
// header. A transaction with every item refunded degrades to zero totals.
func recomputeHeader(tx *domain.Transaction) error {
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
	return nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrValidation
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Name, b.Name)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.SupplierID == "" || len(po.Items) == 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.suppliersByID[po.SupplierID]; !exists {
		return nil, store.ErrNotFound
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

	items := make([]domain.PurchaseOrderItem, 0, len(po.Items))
	for _, item := range po.Items {
		item.SKU = strings.ToUpper(strings.TrimSpace(item.SKU))
		if item.SKU == "" || item.Qty < 1 || item.CostCents < 1 {
			return nil, store.ErrValidation
		}
		items = append(items, item)
	}
	po.Items = items

	s.purchaseOrdersByID[po.ID] = clonePurchaseOrder(po)
	saved := clonePurchaseOrder(s.purchaseOrdersByID[po.ID])
	return &saved, nil
}

func (s *Store) GetPurchaseOrderByID(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, exists := s.purchaseOrdersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPO := clonePurchaseOrder(po)
	return &copyPO, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status = strings.ToLower(strings.TrimSpace(status))
	result := make([]domain.PurchaseOrder, 0, len(s.purchaseOrdersByID))
	for _, po := range s.purchaseOrdersByID {
		if status != "" && po.Status != status {
			continue
		}
		result = append(result, clonePurchaseOrder(po))
	}
	slices.SortFunc(result, func(a, b domain.PurchaseOrder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ReceivePurchaseOrder(_ context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, exists := s.purchaseOrdersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if po.Status == "received" || po.Status == "cancelled" {
		return nil, store.ErrValidation
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	for _, item := range po.Items {
		if item.Qty < 1 || item.CostCents < 1 {
			return nil, store.ErrValidation
		}
		record := s.inventory[item.SKU]
		record.SKU = item.SKU
		record.Active = true
		record.AcquisitionCents = weightedCostCents(record.AcquisitionCents, record.Qty, item.CostCents, item.Qty)
		record.Qty += item.Qty
		record.UpdatedAt = receivedAt
		s.inventory[item.SKU] = record
	}

	po.Status = "received"
	po.ReceivedBy = strings.TrimSpace(receivedBy)
	if po.ReceivedBy == "" {
		po.ReceivedBy = "system"
	}
	po.ReceivedAt = &receivedAt
	s.purchaseOrdersByID[id] = po
	updated := clonePurchaseOrder(po)
	return &updated, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrValidation
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) SetUserActive(_ context.Context, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Active = active
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) GetDailyReport(_ context.Context, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		Date:      from.Format("2006-01-02"),
		ByPayment: make([]domain.DailyReportPayment, 0, 4),
		ByCashier: make([]domain.DailyReportCashier, 0, 8),
	}
	byPayment := map[string]*domain.DailyReportPayment{}
	byCashier := map[string]*domain.DailyReportCashier{}

	for _, tx := range s.transactionsByID {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		if tx.IsDeleted {
			continue
		}

		report.Transactions++
		report.GrossCents += tx.GrossCents
		report.DiscountCents += tx.DiscountCents
		report.VatCents += tx.VatCents
		report.VatExemptCents += tx.VatExemptCents
		report.NetCents += tx.TotalCents

		payment := byPayment[tx.PaymentMethod]
		if payment == nil {
			payment = &domain.DailyReportPayment{PaymentMethod: tx.PaymentMethod}
			byPayment[tx.PaymentMethod] = payment
		}
		payment.Transactions++
		payment.TotalCents += tx.TotalCents

		cashier := byCashier[tx.Cashier]
		if cashier == nil {
			cashier = &domain.DailyReportCashier{Cashier: tx.Cashier}
			byCashier[tx.Cashier] = cashier
		}
		cashier.Transactions++
		cashier.TotalCents += tx.TotalCents
	}

	for _, refund := range s.refunds {
		if refund.IsDeleted {
			continue
		}
		if refund.RefundedAt.Before(from) || !refund.RefundedAt.Before(to) {
			continue
		}
		report.RefundCents += refund.RefundCents
	}

	for _, entry := range byPayment {
		report.ByPayment = append(report.ByPayment, *entry)
	}
	for _, entry := range byCashier {
		report.ByCashier = append(report.ByCashier, *entry)
	}

	slices.SortFunc(report.ByPayment, func(a, b domain.DailyReportPayment) int {
		return cmpString(a.PaymentMethod, b.PaymentMethod)
	})
	slices.SortFunc(report.ByCashier, func(a, b domain.DailyReportCashier) int {
		return cmpString(a.Cashier, b.Cashier)
	})

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
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

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupItems := make([]domain.TransactionItem, len(src.Items))
	copy(dupItems, src.Items)
	dup.Items = dupItems
	return &dup
}

func clonePurchaseOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	dup := src
	items := make([]domain.PurchaseOrderItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	if src.ReceivedAt != nil {
		at := src.ReceivedAt.UTC()
		dup.ReceivedAt = &at
	}
	return dup
}
