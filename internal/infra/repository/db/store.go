package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
)

// Querier 所有 repository 操作，在交易內或交易外使用同一組介面
type Querier interface {
	IProductRepository
	IOrderRepository
	IDiscountRepository
	IOutboxRepository
}

// Store 管理交易邊界
// fn 回傳錯誤時整筆交易 rollback，沒有任何部分寫入會留下
type Store interface {
	ExecTx(ctx context.Context, fn func(Querier) error) error
	ReadTx(ctx context.Context, fn func(Querier) error) error
	Ping(ctx context.Context) error
}

type IProductRepository interface {
	GetProductsByIDs(ctx context.Context, productIDs []uint) ([]model.Product, error)
	// LockProductStock 以 SELECT ... FOR UPDATE 鎖定商品列並回傳當下庫存
	LockProductStock(ctx context.Context, productID uint) (int, error)
	// DeductProductStock 僅在 stock >= quantity 時扣減，回傳是否扣減成功
	DeductProductStock(ctx context.Context, productID uint, quantity int) (bool, error)
	AddProductStock(ctx context.Context, productID uint, quantity int) (bool, error)
}

type IOrderRepository interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderByID(ctx context.Context, orderID string) (*model.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID int, key string) (*model.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	LockOrder(ctx context.Context, orderID string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	// CountUserOrdersWithDiscount 已取消的訂單不列入計算
	CountUserOrdersWithDiscount(ctx context.Context, userID int, code string) (int64, error)
}

type IDiscountRepository interface {
	GetDiscountByCode(ctx context.Context, code string) (*model.Discount, error)
	GetDiscountByCodeForUpdate(ctx context.Context, code string) (*model.Discount, error)
	// IncrementDiscountUsage 僅在未達 max_uses 時 +1，回傳是否成功
	IncrementDiscountUsage(ctx context.Context, discountID uint) (bool, error)
}

type IOutboxRepository interface {
	InsertOutbox(ctx context.Context, record *model.OutboxRecord) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]model.OutboxRecord, error)
	MarkOutboxSent(ctx context.Context, ids []int64, sentAt time.Time) error
}

type OrderFilter struct {
	UserID *int
	Status *model.OrderStatus
	Limit  int
	Offset int
}

// Queries 組合各 repository，conn 可以是連線池或交易
type Queries struct {
	*ProductRepo
	*OrderRepo
	*DiscountRepo
	*OutboxRepo
}

func NewQueries(conn *gorm.DB) *Queries {
	return &Queries{
		ProductRepo:  NewProductRepo(conn),
		OrderRepo:    NewOrderRepo(conn),
		DiscountRepo: NewDiscountRepo(conn),
		OutboxRepo:   NewOutboxRepo(conn),
	}
}

type TxTimeouts struct {
	LockTimeout      time.Duration
	StatementTimeout time.Duration
}

type PgStore struct {
	dao      *DbDao
	timeouts TxTimeouts
}

func NewPgStore(dao *DbDao, timeouts TxTimeouts) *PgStore {
	return &PgStore{dao: dao, timeouts: timeouts}
}

// ExecTx READ COMMITTED 讀寫交易
// 死結或鎖等待逾時由 postgres 中止交易，呼叫端用 IsRetryable 判斷
func (s *PgStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// ReadTx 唯讀交易，查詢共用同一個快照
func (s *PgStore) ReadTx(ctx context.Context, fn func(Querier) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *PgStore) run(ctx context.Context, opts *sql.TxOptions, fn func(Querier) error) error {
	return s.dao.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyTimeouts(tx); err != nil {
			return err
		}
		return fn(NewQueries(tx))
	}, opts)
}

// SET LOCAL 只作用在目前交易
func (s *PgStore) applyTimeouts(tx *gorm.DB) error {
	if s.timeouts.LockTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", s.timeouts.LockTimeout.Milliseconds())).Error; err != nil {
			return err
		}
	}
	if s.timeouts.StatementTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", s.timeouts.StatementTimeout.Milliseconds())).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PgStore) Ping(ctx context.Context) error {
	sqlDB, err := s.dao.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

var (
	_ Store   = (*PgStore)(nil)
	_ Querier = (*Queries)(nil)
)
