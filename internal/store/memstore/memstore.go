// Package memstore is an in-memory implementation of the store ports. Every
// transaction works on a private copy of the data and replaces the shared copy
// on commit, so a failed transaction leaves no trace. Transactions are
// serialized by a single mutex.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/store"
)

// ErrConflict is a simulated serialization failure. IsRetryable reports true for it.
var ErrConflict = errors.New("memstore: serialization conflict")

type edgeKey struct {
	parent, component int64
}

type data struct {
	products map[int64]models.Product
	edges    map[edgeKey]models.ComponentEdge
	orders   map[int64]models.Order
	usage    []models.ProductUsage
	history  []models.ProductHistory
	events   []models.CatalogEvent

	productSeq, edgeSeq, orderSeq, itemSeq, historySeq, eventSeq int64
}

func newData() *data {
	return &data{
		products: make(map[int64]models.Product),
		edges:    make(map[edgeKey]models.ComponentEdge),
		orders:   make(map[int64]models.Order),
	}
}

func (d *data) clone() *data {
	c := *d
	c.products = make(map[int64]models.Product, len(d.products))
	for k, v := range d.products {
		c.products[k] = copyProduct(v)
	}
	c.edges = make(map[edgeKey]models.ComponentEdge, len(d.edges))
	for k, v := range d.edges {
		c.edges[k] = copyEdge(v)
	}
	c.orders = make(map[int64]models.Order, len(d.orders))
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	c.usage = append([]models.ProductUsage(nil), d.usage...)
	c.history = append([]models.ProductHistory(nil), d.history...)
	c.events = append([]models.CatalogEvent(nil), d.events...)
	return &c
}

// Store is the in-memory store.
type Store struct {
	mu       sync.Mutex
	data     *data
	now      func() time.Time
	failures []error
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: newData(), now: time.Now}
}

// SetClock overrides the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next len(errs) transactions fail with the given errors
// before running their function.
func (s *Store) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, _ store.TxOptions, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}

	work := s.data.clone()
	if err := fn(ctx, &tx{d: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// IsRetryable implements store.Store.
func (s *Store) IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error { return nil }

type tx struct {
	d   *data
	now func() time.Time
}

func (t *tx) Products() store.Products { return &products{t} }
func (t *tx) Edges() store.Edges       { return &edges{t} }
func (t *tx) Orders() store.Orders     { return &orders{t} }
func (t *tx) Usage() store.Usage       { return &usage{t} }
func (t *tx) History() store.History   { return &history{t} }
func (t *tx) Events() store.Events     { return &events{t} }

type products struct{ *tx }

func (r *products) GetByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := r.d.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	out := copyProduct(p)
	return &out, nil
}

func (r *products) GetByIDForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *products) GetBySKU(_ context.Context, sku string) (*models.Product, error) {
	for _, p := range r.d.products {
		if p.SKU == sku {
			out := copyProduct(p)
			return &out, nil
		}
	}
	return nil, models.ErrProductNotFound
}

func (r *products) Create(_ context.Context, p *models.Product) error {
	for _, existing := range r.d.products {
		if existing.SKU == p.SKU {
			return models.ErrSKUExists
		}
	}
	r.d.productSeq++
	p.ID = r.d.productSeq
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	r.d.products[p.ID] = copyProduct(*p)
	return nil
}

func (r *products) Update(_ context.Context, p *models.Product) error {
	if _, ok := r.d.products[p.ID]; !ok {
		return models.ErrProductNotFound
	}
	for id, existing := range r.d.products {
		if id != p.ID && existing.SKU == p.SKU {
			return models.ErrSKUExists
		}
	}
	p.UpdatedAt = r.now()
	r.d.products[p.ID] = copyProduct(*p)
	return nil
}

func (r *products) Delete(_ context.Context, id int64) error {
	if _, ok := r.d.products[id]; !ok {
		return models.ErrProductNotFound
	}
	for k := range r.d.edges {
		if k.component == id {
			return models.ErrComponentInUse
		}
	}
	for k := range r.d.edges {
		if k.parent == id {
			delete(r.d.edges, k)
		}
	}
	for pid, p := range r.d.products {
		if p.ReplacedBy != nil && *p.ReplacedBy == id {
			p.ReplacedBy = nil
			r.d.products[pid] = p
		}
		if p.PreviousVersionID != nil && *p.PreviousVersionID == id {
			p.PreviousVersionID = nil
			r.d.products[pid] = p
		}
	}
	delete(r.d.products, id)
	return nil
}

func (r *products) List(_ context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	var all []models.Product
	for _, p := range r.d.products {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		all = append(all, copyProduct(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *products) ListLineage(_ context.Context, baseID int64) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.d.products {
		if p.ID == baseID || (p.BaseProductID != nil && *p.BaseProductID == baseID) {
			out = append(out, copyProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *products) DecrementStock(_ context.Context, id int64, qty int) error {
	p, ok := r.d.products[id]
	if !ok {
		return models.ErrProductNotFound
	}
	if p.StockQuantity == nil {
		return nil
	}
	if *p.StockQuantity < qty {
		return models.ErrInsufficientStock
	}
	left := *p.StockQuantity - qty
	p.StockQuantity = &left
	p.UpdatedAt = r.now()
	r.d.products[id] = p
	return nil
}

type edges struct{ *tx }

func (r *edges) Exists(_ context.Context, parentID, componentID int64) (bool, error) {
	_, ok := r.d.edges[edgeKey{parentID, componentID}]
	return ok, nil
}

func (r *edges) Children(_ context.Context, parentID int64) ([]models.ComponentEdge, error) {
	var out []models.ComponentEdge
	for k, e := range r.d.edges {
		if k.parent == parentID {
			out = append(out, copyEdge(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ComponentProductID < out[j].ComponentProductID
	})
	return out, nil
}

func (r *edges) Parents(_ context.Context, componentID int64) ([]models.ComponentEdge, error) {
	var out []models.ComponentEdge
	for k, e := range r.d.edges {
		if k.component == componentID {
			out = append(out, copyEdge(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParentProductID < out[j].ParentProductID })
	return out, nil
}

func (r *edges) Insert(_ context.Context, e *models.ComponentEdge) error {
	k := edgeKey{e.ParentProductID, e.ComponentProductID}
	if _, ok := r.d.edges[k]; ok {
		return models.ErrDuplicateEdge
	}
	if _, ok := r.d.products[e.ParentProductID]; !ok {
		return models.ErrProductNotFound
	}
	if _, ok := r.d.products[e.ComponentProductID]; !ok {
		return models.ErrProductNotFound
	}
	r.d.edgeSeq++
	e.ID = r.d.edgeSeq
	e.CreatedAt = r.now()
	r.d.edges[k] = copyEdge(*e)
	return nil
}

func (r *edges) Delete(_ context.Context, parentID, componentID int64) (bool, error) {
	k := edgeKey{parentID, componentID}
	if _, ok := r.d.edges[k]; !ok {
		return false, nil
	}
	delete(r.d.edges, k)
	return true, nil
}

func (r *edges) DeleteByParent(_ context.Context, parentID int64) error {
	for k := range r.d.edges {
		if k.parent == parentID {
			delete(r.d.edges, k)
		}
	}
	return nil
}

type orders struct{ *tx }

func (r *orders) Create(_ context.Context, o *models.Order) error {
	r.d.orderSeq++
	o.ID = r.d.orderSeq
	o.CreatedAt = r.now()
	for i := range o.Items {
		r.d.itemSeq++
		o.Items[i].ID = r.d.itemSeq
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = o.CreatedAt
	}
	r.d.orders[o.ID] = copyOrder(*o)
	return nil
}

func (r *orders) GetByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := r.d.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

type usage struct{ *tx }

func (r *usage) Record(_ context.Context, rows []models.ProductUsage) error {
	r.d.usage = append(r.d.usage, rows...)
	return nil
}

func (r *usage) Exists(_ context.Context, productID int64) (bool, error) {
	for _, u := range r.d.usage {
		if u.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (r *usage) CountOrders(_ context.Context, productID int64) (int, error) {
	seen := make(map[int64]struct{})
	for _, u := range r.d.usage {
		if u.ProductID == productID {
			seen[u.OrderID] = struct{}{}
		}
	}
	return len(seen), nil
}

type history struct{ *tx }

func (r *history) Append(_ context.Context, h *models.ProductHistory) error {
	r.d.historySeq++
	h.ID = r.d.historySeq
	h.CreatedAt = r.now()
	r.d.history = append(r.d.history, *h)
	return nil
}

func (r *history) ListByLineage(_ context.Context, baseID int64) ([]models.ProductHistory, error) {
	var out []models.ProductHistory
	for _, h := range r.d.history {
		if h.BaseProductID == baseID {
			out = append(out, h)
		}
	}
	return out, nil
}

type events struct{ *tx }

func (r *events) Append(_ context.Context, e *models.CatalogEvent) error {
	r.d.eventSeq++
	e.ID = r.d.eventSeq
	e.CreatedAt = r.now()
	r.d.events = append(r.d.events, *e)
	return nil
}

func (r *events) ListUnpublished(_ context.Context, limit int) ([]models.CatalogEvent, error) {
	var out []models.CatalogEvent
	for _, e := range r.d.events {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *events) MarkPublished(_ context.Context, ids []int64) error {
	marked := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	now := r.now()
	for i := range r.d.events {
		if _, ok := marked[r.d.events[i].ID]; ok {
			ts := now
			r.d.events[i].PublishedAt = &ts
		}
	}
	return nil
}

func copyProduct(p models.Product) models.Product {
	p.ComponentPrice = copyPtr(p.ComponentPrice)
	p.StockQuantity = copyPtr(p.StockQuantity)
	p.BaseProductID = copyPtr(p.BaseProductID)
	p.PreviousVersionID = copyPtr(p.PreviousVersionID)
	p.ReplacedBy = copyPtr(p.ReplacedBy)
	p.DiscontinuedReason = copyPtr(p.DiscontinuedReason)
	return p
}

func copyEdge(e models.ComponentEdge) models.ComponentEdge {
	e.PriceOverride = copyPtr(e.PriceOverride)
	return e
}

func copyOrder(o models.Order) models.Order {
	o.Notes = copyPtr(o.Notes)
	items := make([]models.OrderLineItem, len(o.Items))
	for i, it := range o.Items {
		it.ComponentTree = it.ComponentTree.Clone()
		items[i] = it
	}
	o.Items = items
	return o
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
