// Package memstore keeps every record in process memory. It backs the test
// suites and DB_DRIVER=memory local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ShopAPI/models"
	"ShopAPI/store"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]models.Product
	users    map[string]models.User
	orders   map[string]models.Order
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products: make(map[string]models.Product),
		users:    make(map[string]models.User),
		orders:   make(map[string]models.Order),
		now:      time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error  { return nil }
func (s *Store) Close(ctx context.Context) error { return nil }

func newID() string {
	return uuid.New().String()
}

func copyProduct(p models.Product) models.Product {
	p.Reviews = append([]models.Review(nil), p.Reviews...)
	if p.Reviews == nil {
		p.Reviews = []models.Review{}
	}
	return p
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func matchProduct(p models.Product, f models.ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.Product, 0)
	for _, p := range s.products {
		if matchProduct(p, filter) {
			matched = append(matched, copyProduct(p))
		}
	}
	// 新商品在前，建立時間相同時依ID排序
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []models.Product{}, total, nil
	}
	end := filter.Offset + store.NormalizeLimit(filter.Limit)
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = copyProduct(p)
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	product.ID = newID()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Reviews = []models.Review{}
	product.RecalculateRating()
	s.products[product.ID] = copyProduct(*product)
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	update.Apply(&p)
	p.UpdatedAt = s.now()
	s.products[id] = p
	p = copyProduct(p)
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AddReview(ctx context.Context, productID string, review models.Review) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.HasReviewFrom(review.UserID) {
		return nil, store.ErrAlreadyReviewed
	}

	review.ID = newID()
	review.CreatedAt = s.now()
	p = copyProduct(p)
	p.Reviews = append(p.Reviews, review)
	p.RecalculateRating()
	p.UpdatedAt = review.CreatedAt
	s.products[productID] = p

	p = copyProduct(p)
	return &p, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	now := s.now()
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && existing.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.UpdatedAt = s.now()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 先檢查所有商品庫存，再一次扣除
	need := make(map[string]int)
	for _, item := range order.Items {
		total, err := store.AddQuantity(need[item.ProductID], item.Quantity)
		if err != nil {
			return err
		}
		need[item.ProductID] = total
	}
	for productID, quantity := range need {
		p, ok := s.products[productID]
		if !ok {
			return store.ErrNotFound
		}
		if p.Stock < quantity {
			return store.ErrInsufficientStock
		}
	}
	for productID, quantity := range need {
		p := s.products[productID]
		p.Stock -= quantity
		s.products[productID] = p
	}

	now := s.now()
	order.ID = newID()
	order.Status = models.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now
	s.orders[order.ID] = copyOrder(*order)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0)
	for _, o := range s.orders {
		if userID == "" || o.UserID == userID {
			orders = append(orders, copyOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, at time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !o.CanTransition(status) {
		return nil, store.ErrInvalidTransition
	}
	o.Status = status
	switch status {
	case models.OrderStatusPaid:
		o.PaidAt = &at
	case models.OrderStatusDelivered:
		o.DeliveredAt = &at
	}
	o.UpdatedAt = at
	s.orders[id] = o

	o = copyOrder(o)
	return &o, nil
}
