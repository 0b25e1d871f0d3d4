package store

import (
	"context"
	"errors"
	"time"

	"tindapos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConsistency       = errors.New("consistency violation")
)

// Repository is the storage contract. Operations that mutate money or stock
// (CreateSale, RefundItem, VoidTransaction, ReceivePurchaseOrder) are atomic
// units: they either commit every write they describe or none of them.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product, initialStock int, acquisitionCents int64) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error)
	CreatePriceHistory(ctx context.Context, entry domain.ProductPriceHistory) error
	ListPriceHistory(ctx context.Context, sku string, limit int) ([]domain.ProductPriceHistory, error)

	ListInventory(ctx context.Context) ([]domain.InventoryRecord, error)
	GetStockMap(ctx context.Context, skus []string) (map[string]int, error)
	ReceiveDelivery(ctx context.Context, sku string, qty int, acquisitionCents int64) (*domain.InventoryRecord, error)
	AdjustStock(ctx context.Context, adjustments []domain.StockCountAdjustment) error

	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetTransactionByReceipt(ctx context.Context, receiptNum string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error)
	CreateSale(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	RefundItem(ctx context.Context, receiptNum string, sku string, qty int, reason string, note string, at time.Time) (*domain.RefundResponse, error)
	VoidTransaction(ctx context.Context, receiptNum string, reason string, at time.Time) (*domain.Transaction, error)
	RecomputeTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	GetPurchaseOrderByID(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error)
	ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	SetUserActive(ctx context.Context, username string, active bool) error

	GetDailyReport(ctx context.Context, from time.Time, to time.Time) (domain.DailyReport, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
