package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory TxRunner. Writes go straight to the shared maps
// and are undone on rollback; LockActiveBySKU holds a per-SKU mutex until
// the transaction ends, which is enough to reproduce FOR UPDATE ordering.
type memStore struct {
	mu        sync.Mutex
	products  map[string]*domain.Product
	customers map[string]*domain.Customer
	sales     map[uuid.UUID]*domain.Sale
	items     map[uuid.UUID][]*domain.SaleItem
	rowLocks  map[string]*sync.Mutex

	// failures injected by tests
	createItemErr error
	upsertFailSKU string
}

func newMemStore(products ...*domain.Product) *memStore {
	s := &memStore{
		products:  make(map[string]*domain.Product),
		customers: make(map[string]*domain.Customer),
		sales:     make(map[uuid.UUID]*domain.Sale),
		items:     make(map[uuid.UUID][]*domain.SaleItem),
		rowLocks:  make(map[string]*sync.Mutex),
	}
	for _, p := range products {
		cp := *p
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.SKU = domain.NormalizeSKU(cp.SKU)
		s.products[cp.SKU] = &cp
	}
	return s
}

func product(sku string, price string, stock int) *domain.Product {
	return &domain.Product{
		SKU:      sku,
		Name:     "Product " + sku,
		Unit:     "pcs",
		Price:    decimal.RequireFromString(price),
		StockQty: stock,
		IsActive: true,
	}
}

type memTx struct {
	s    *memStore
	held []*sync.Mutex
	undo []func()
}

func (t *memTx) onRollback(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func (s *memStore) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx := &memTx{s: s}
	err := fn(s.repos(tx))

	if err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
	}

	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	return err
}

// Repositories returns pool-bound repositories that take no row locks
func (s *memStore) Repositories() repository.Repositories {
	return s.repos(nil)
}

func (s *memStore) repos(tx *memTx) repository.Repositories {
	return repository.Repositories{
		Products:  &memProducts{s: s, tx: tx},
		Customers: &memCustomers{s: s, tx: tx},
		Sales:     &memSales{s: s, tx: tx},
	}
}

func (s *memStore) stock(sku string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[sku].StockQty
}

func (s *memStore) saleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

func (s *memStore) customerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers)
}

type memProducts struct {
	s  *memStore
	tx *memTx
}

func (r *memProducts) Create(ctx context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.SKU = domain.NormalizeSKU(p.SKU)
	if _, ok := r.s.products[p.SKU]; ok {
		return repository.ErrProductAlreadyExists
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.s.products[p.SKU] = &cp
	r.tx.onRollback(func() { delete(r.s.products, cp.SKU) })
	return nil
}

func (r *memProducts) Update(ctx context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sku := domain.NormalizeSKU(p.SKU)
	old, ok := r.s.products[sku]
	if !ok {
		return repository.ErrProductNotFound
	}
	cp := *p
	cp.ID, cp.SKU = old.ID, sku
	r.s.products[sku] = &cp
	r.tx.onRollback(func() { r.s.products[sku] = old })
	return nil
}

func (r *memProducts) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[domain.NormalizeSKU(sku)]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) ListActive(ctx context.Context) ([]*domain.Product, error) {
	all, _ := r.ListAll(ctx)
	active := []*domain.Product{}
	for _, p := range all {
		if p.IsActive {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	return active, nil
}

func (r *memProducts) ListAll(ctx context.Context) ([]*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range r.s.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *memProducts) LockActiveBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	sku = domain.NormalizeSKU(sku)

	if r.tx != nil {
		r.s.mu.Lock()
		lock, ok := r.s.rowLocks[sku]
		if !ok {
			lock = &sync.Mutex{}
			r.s.rowLocks[sku] = lock
		}
		r.s.mu.Unlock()

		lock.Lock()
		r.tx.held = append(r.tx.held, lock)
	}

	p, err := r.FindBySKU(ctx, sku)
	if err != nil || !p.IsActive {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (r *memProducts) DecrementStock(ctx context.Context, sku string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[domain.NormalizeSKU(sku)]
	if !ok || p.StockQty < qty {
		return repository.ErrInsufficientStock
	}
	p.StockQty -= qty
	r.tx.onRollback(func() { p.StockQty += qty })
	return nil
}

func (r *memProducts) Upsert(ctx context.Context, p *domain.Product) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.SKU = domain.NormalizeSKU(p.SKU)
	if p.SKU == r.s.upsertFailSKU {
		return false, context.DeadlineExceeded
	}

	p.UpdatedAt = time.Now().UTC()
	old, ok := r.s.products[p.SKU]
	if ok {
		p.ID = old.ID
		cp := *p
		r.s.products[p.SKU] = &cp
		r.tx.onRollback(func() { r.s.products[old.SKU] = old })
		return false, nil
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.s.products[p.SKU] = &cp
	r.tx.onRollback(func() { delete(r.s.products, cp.SKU) })
	return true, nil
}

type memCustomers struct {
	s  *memStore
	tx *memTx
}

func (r *memCustomers) CreateIfAbsent(ctx context.Context, c *domain.Customer) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[c.Email]; ok {
		return false, nil
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.s.customers[c.Email] = &cp
	r.tx.onRollback(func() { delete(r.s.customers, cp.Email) })
	return true, nil
}

func (r *memCustomers) FindByEmail(ctx context.Context, email string, forUpdate bool) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[email]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCustomers) UpdateContact(ctx context.Context, c *domain.Customer, fields []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.customers[c.Email]
	if !ok {
		return repository.ErrCustomerNotFound
	}
	old := *stored
	for _, f := range fields {
		switch f {
		case "name":
			stored.Name = c.Name
		case "phone":
			stored.Phone = c.Phone
		}
	}
	r.tx.onRollback(func() { *stored = old })
	return nil
}

func (r *memCustomers) List(ctx context.Context) ([]*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Customer{}
	for _, c := range r.s.customers {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memCustomers) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sale := range r.s.sales {
		if sale.CustomerID == id {
			return repository.ErrCustomerHasSales
		}
	}
	for email, c := range r.s.customers {
		if c.ID == id {
			delete(r.s.customers, email)
			return nil
		}
	}
	return repository.ErrCustomerNotFound
}

type memSales struct {
	s  *memStore
	tx *memTx
}

func (r *memSales) Create(ctx context.Context, sale *domain.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusNew
	}
	sale.SaleNo = domain.NewSaleNumber(sale.CreatedAt)

	header := *sale
	header.Customer, header.Items = nil, nil
	r.s.sales[sale.ID] = &header
	r.tx.onRollback(func() { delete(r.s.sales, header.ID) })
	return nil
}

func (r *memSales) CreateItem(ctx context.Context, item *domain.SaleItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createItemErr != nil {
		return r.s.createItemErr
	}
	if _, ok := r.s.sales[item.SaleID]; !ok {
		return repository.ErrSaleNotFound
	}
	cp := *item
	r.s.items[item.SaleID] = append(r.s.items[item.SaleID], &cp)
	r.tx.onRollback(func() {
		items := r.s.items[cp.SaleID]
		r.s.items[cp.SaleID] = items[:len(items)-1]
		if len(r.s.items[cp.SaleID]) == 0 {
			delete(r.s.items, cp.SaleID)
		}
	})
	return nil
}

func (r *memSales) UpdateTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return repository.ErrSaleNotFound
	}
	old := sale.TotalAmount
	sale.TotalAmount = total
	r.tx.onRollback(func() { sale.TotalAmount = old })
	return nil
}

func (r *memSales) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	return r.nested(sale), nil
}

// nested must be called with mu held
func (r *memSales) nested(sale *domain.Sale) *domain.Sale {
	cp := *sale
	for _, c := range r.s.customers {
		if c.ID == sale.CustomerID {
			cust := *c
			cp.Customer = &cust
		}
	}
	cp.Items = []*domain.SaleItem{}
	for _, item := range r.s.items[sale.ID] {
		it := *item
		cp.Items = append(cp.Items, &it)
	}
	sort.Slice(cp.Items, func(i, j int) bool { return cp.Items[i].SKU < cp.Items[j].SKU })
	return &cp
}

func (r *memSales) ListItems(ctx context.Context, saleID uuid.UUID) ([]*domain.SaleItem, error) {
	sale, err := r.FindByID(ctx, saleID)
	if err != nil {
		return []*domain.SaleItem{}, nil
	}
	return sale.Items, nil
}

func (r *memSales) List(ctx context.Context, status *domain.SaleStatus) ([]*domain.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*domain.Sale{}
	for _, sale := range r.s.sales {
		if status != nil && sale.Status != *status {
			continue
		}
		cp := r.nested(sale)
		cp.Items = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memSales) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SaleStatus, paidAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return repository.ErrSaleNotFound
	}
	if sale.Status != from {
		return repository.ErrInvalidStatusTransition
	}
	sale.Status = to
	if paidAt != nil {
		sale.PaidAt = paidAt
	}
	return nil
}

func (r *memSales) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sales[id]; !ok {
		return repository.ErrSaleNotFound
	}
	delete(r.s.sales, id)
	delete(r.s.items, id)
	return nil
}
