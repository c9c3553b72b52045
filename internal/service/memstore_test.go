package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"gorm.io/gorm"
)

// memState 交易開始時複製一份，commit 時整份替換
type memState struct {
	products     map[uint]model.Product
	discounts    map[uint]model.Discount
	orders       map[string]model.Order
	outbox       []model.OutboxRecord
	nextOutboxID int64
}

func newMemState() *memState {
	return &memState{
		products:  map[uint]model.Product{},
		discounts: map[uint]model.Discount{},
		orders:    map[string]model.Order{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.discounts {
		c.discounts[k] = v
	}
	for k, v := range s.orders {
		v.OrderItems = append([]model.OrderItem(nil), v.OrderItems...)
		c.orders[k] = v
	}
	c.outbox = append([]model.OutboxRecord(nil), s.outbox...)
	c.nextOutboxID = s.nextOutboxID
	return c
}

// memStore 交易互斥執行，效果等同所有列都被鎖定
type memStore struct {
	mu    sync.Mutex
	state *memState

	// 每個交易依序鎖定的商品 id
	lockLog [][]uint
	// 下一次 ExecTx 在 fn 成功後回傳的錯誤，模擬 commit 時失敗
	failCommit error
	// CreateOrder 前呼叫，可修改已提交狀態模擬並行交易
	beforeCreateOrder func(committed *memState)
	execCount         int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (s *memStore) ExecTx(ctx context.Context, fn func(db.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execCount++

	tx := &memTx{store: s, state: s.state.clone()}
	err := fn(tx)
	s.lockLog = append(s.lockLog, tx.locked)
	if err == nil && s.failCommit != nil {
		err = s.failCommit
		s.failCommit = nil
	}
	if err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memStore) ReadTx(ctx context.Context, fn func(db.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{store: s, state: s.state.clone()})
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) addProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ProductID] = p
}

func (s *memStore) addDiscount(d model.Discount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.discounts[d.ID] = d
}

func (s *memStore) addOrder(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.orders[o.OrderID] = o
}

func (s *memStore) stock(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id].Stock
}

func (s *memStore) discount(id uint) model.Discount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.discounts[id]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *memStore) order(id string) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[id]
}

func (s *memStore) outboxRecords() []model.OutboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxRecord(nil), s.state.outbox...)
}

func (s *memStore) setPrice(id uint, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	p.Price = dec(price)
	s.state.products[id] = p
}

type memTx struct {
	store  *memStore
	state  *memState
	locked []uint
}

func (t *memTx) GetProductsByIDs(ctx context.Context, productIDs []uint) ([]model.Product, error) {
	var products []model.Product
	for _, id := range productIDs {
		if p, ok := t.state.products[id]; ok {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductID < products[j].ProductID })
	return products, nil
}

func (t *memTx) LockProductStock(ctx context.Context, productID uint) (int, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return 0, db.ErrNotFound
	}
	t.locked = append(t.locked, productID)
	return p.Stock, nil
}

func (t *memTx) DeductProductStock(ctx context.Context, productID uint, quantity int) (bool, error) {
	p, ok := t.state.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	t.state.products[productID] = p
	return true, nil
}

func (t *memTx) AddProductStock(ctx context.Context, productID uint, quantity int) (bool, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return false, nil
	}
	p.Stock += quantity
	t.state.products[productID] = p
	return true, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *model.Order) error {
	if hook := t.store.beforeCreateOrder; hook != nil {
		t.store.beforeCreateOrder = nil
		hook(t.store.state)
		for k, v := range t.store.state.orders {
			t.state.orders[k] = v
		}
	}
	if _, ok := t.state.orders[order.OrderID]; ok {
		return gorm.ErrDuplicatedKey
	}
	if order.IdempotencyKey != nil {
		for _, o := range t.state.orders {
			if o.UserID == order.UserID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	o := *order
	o.OrderItems = append([]model.OrderItem(nil), order.OrderItems...)
	t.state.orders[o.OrderID] = o
	return nil
}

func (t *memTx) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) GetOrderByIdempotencyKey(ctx context.Context, userID int, key string) (*model.Order, error) {
	for _, o := range t.state.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, db.ErrNotFound
}

func (t *memTx) ListOrders(ctx context.Context, filter db.OrderFilter) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range t.state.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].OrderID < orders[j].OrderID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(orders) {
			return nil, nil
		}
		orders = orders[filter.Offset:]
	}
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (t *memTx) LockOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return t.GetOrderByID(ctx, orderID)
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	o, ok := t.state.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	o.Status = status
	t.state.orders[orderID] = o
	return nil
}

func (t *memTx) CountUserOrdersWithDiscount(ctx context.Context, userID int, code string) (int64, error) {
	var count int64
	for _, o := range t.state.orders {
		if o.UserID != userID || o.DiscountCode == nil || o.Status == model.OrderStatusCancelled {
			continue
		}
		if strings.EqualFold(*o.DiscountCode, code) {
			count++
		}
	}
	return count, nil
}

func (t *memTx) GetDiscountByCode(ctx context.Context, code string) (*model.Discount, error) {
	for _, d := range t.state.discounts {
		if strings.EqualFold(d.Code, code) {
			return &d, nil
		}
	}
	return nil, db.ErrNotFound
}

func (t *memTx) GetDiscountByCodeForUpdate(ctx context.Context, code string) (*model.Discount, error) {
	return t.GetDiscountByCode(ctx, code)
}

func (t *memTx) IncrementDiscountUsage(ctx context.Context, discountID uint) (bool, error) {
	d, ok := t.state.discounts[discountID]
	if !ok {
		return false, nil
	}
	if d.MaxUses != nil && d.UsedCount >= *d.MaxUses {
		return false, nil
	}
	d.UsedCount++
	t.state.discounts[discountID] = d
	return true, nil
}

func (t *memTx) InsertOutbox(ctx context.Context, record *model.OutboxRecord) error {
	t.state.nextOutboxID++
	record.ID = t.state.nextOutboxID
	record.CreatedAt = time.Now()
	t.state.outbox = append(t.state.outbox, *record)
	return nil
}

func (t *memTx) FetchPendingOutbox(ctx context.Context, limit int) ([]model.OutboxRecord, error) {
	var records []model.OutboxRecord
	for _, r := range t.state.outbox {
		if r.SentAt == nil {
			records = append(records, r)
		}
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

func (t *memTx) MarkOutboxSent(ctx context.Context, ids []int64, sentAt time.Time) error {
	marked := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	for i := range t.state.outbox {
		if _, ok := marked[t.state.outbox[i].ID]; ok {
			at := sentAt
			t.state.outbox[i].SentAt = &at
		}
	}
	return nil
}

var (
	_ db.Store   = (*memStore)(nil)
	_ db.Querier = (*memTx)(nil)
)
