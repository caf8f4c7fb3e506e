// Package sqlstore persists the catalog, users and orders through gorm on MySQL
// or PostgreSQL. Reviews are a child table of products.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ShopAPI/models"
	"ShopAPI/store"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// Open 建立連線並自動遷移資料表
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is empty")
	}
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	err = db.WithContext(ctx).AutoMigrate(
		&userRow{},
		&productRow{},
		&reviewRow{},
		&orderRow{},
		&orderItemRow{},
	)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, store.ErrNotFound
	}
	return uint(n), nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// productScope 商品列表查詢條件
func productScope(f models.ProductFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if f.MinPrice != nil {
			db = db.Where("price >= ?", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			db = db.Where("price <= ?", *f.MaxPrice)
		}
		if f.Search != "" {
			db = db.Where("LOWER(name) LIKE ?", "%"+likeEscaper.Replace(strings.ToLower(f.Search))+"%")
		}
		return db
	}
}

func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&productRow{}).
		Scopes(productScope(f)).
		Count(&total).
		Error
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	var rows []productRow
	err = s.db.WithContext(ctx).
		Scopes(productScope(f)).
		Preload("Reviews").
		Order("created_at DESC").
		Order("id ASC").
		Limit(store.NormalizeLimit(f.Limit)).
		Offset(f.Offset).
		Find(&rows).
		Error
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toModel())
	}
	return products, total, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var row productRow
	err = s.db.WithContext(ctx).Preload("Reviews").First(&row, pid).Error
	if err != nil {
		return nil, notFound(err)
	}

	p := row.toModel()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	row := productRow{
		Name:        product.Name,
		Price:       product.Price,
		Category:    product.Category,
		Description: product.Description,
		Image:       product.Image,
		Stock:       product.Stock,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	*product = row.toModel()
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	columns := map[string]interface{}{}
	if update.Name != nil {
		columns["name"] = *update.Name
	}
	if update.Price != nil {
		columns["price"] = *update.Price
	}
	if update.Category != nil {
		columns["category"] = *update.Category
	}
	if update.Description != nil {
		columns["description"] = *update.Description
	}
	if update.Image != nil {
		columns["image"] = *update.Image
	}
	if update.Stock != nil {
		columns["stock"] = *update.Stock
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row productRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, pid).Error; err != nil {
			return notFound(err)
		}
		if len(columns) == 0 {
			return nil
		}
		return tx.Model(&row).Updates(columns).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	pid, err := parseID(id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&productRow{}, pid)
	if result.Error != nil {
		return fmt.Errorf("delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddReview(ctx context.Context, productID string, review models.Review) (*models.Product, error) {
	pid, err := parseID(productID)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(review.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid reviewer id %q: %w", review.UserID, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row productRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Reviews").
			First(&row, pid).
			Error
		if err != nil {
			return notFound(err)
		}

		p := row.toModel()
		if p.HasReviewFrom(review.UserID) {
			return store.ErrAlreadyReviewed
		}

		err = tx.Create(&reviewRow{
			ProductID: pid,
			UserID:    uint(uid),
			Name:      review.Name,
			Rating:    review.Rating,
			Comment:   review.Comment,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrAlreadyReviewed
		}
		if err != nil {
			return err
		}

		//重新計算平均分數
		p.Reviews = append(p.Reviews, models.Review{UserID: review.UserID, Rating: review.Rating})
		p.RecalculateRating()
		return tx.Model(&row).Updates(map[string]interface{}{
			"rating":      p.Rating,
			"num_reviews": p.NumReviews,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	row := userRow{
		Name:     user.Name,
		Email:    user.Email,
		Password: user.Password,
		Role:     string(user.Role),
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	*user = row.toModel()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var row userRow
	if err := s.db.WithContext(ctx).First(&row, uid).Error; err != nil {
		return nil, notFound(err)
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	uid, err := parseID(user.ID)
	if err != nil {
		return err
	}

	user.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", uid).Updates(map[string]interface{}{
		"name":       user.Name,
		"email":      user.Email,
		"password":   user.Password,
		"role":       string(user.Role),
		"updated_at": user.UpdatedAt,
	})
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	if result.Error != nil {
		return fmt.Errorf("update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Delete(&userRow{}, uid)
	if result.Error != nil {
		return fmt.Errorf("delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// stockNeeds 合併同一商品的數量，並依商品ID排序避免交易間互相鎖死
func stockNeeds(order *models.Order) (map[uint]int, []uint, []orderItemRow, error) {
	need := make(map[uint]int)
	items := make([]orderItemRow, 0, len(order.Items))
	for _, item := range order.Items {
		pid, err := parseID(item.ProductID)
		if err != nil {
			return nil, nil, nil, err
		}
		if need[pid], err = store.AddQuantity(need[pid], item.Quantity); err != nil {
			return nil, nil, nil, err
		}
		items = append(items, orderItemRow{
			ProductID: pid,
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	productIDs := make([]uint, 0, len(need))
	for pid := range need {
		productIDs = append(productIDs, pid)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
	return need, productIDs, items, nil
}

// reserveStock 庫存足夠時才扣除，RowsAffected 為 0 代表不足或商品不存在
func reserveStock(tx *gorm.DB, pid uint, quantity int) *gorm.DB {
	return tx.Model(&productRow{}).
		Where("id = ? AND stock >= ?", pid, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	uid, err := strconv.ParseUint(order.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order user id %q: %w", order.UserID, err)
	}

	need, productIDs, items, err := stockNeeds(order)
	if err != nil {
		return err
	}

	row := orderRow{
		UserID:        uint(uid),
		Items:         items,
		Address:       order.ShippingAddress.Address,
		City:          order.ShippingAddress.City,
		PostalCode:    order.ShippingAddress.PostalCode,
		Country:       order.ShippingAddress.Country,
		PaymentMethod: order.PaymentMethod,
		ItemsPrice:    order.ItemsPrice,
		ShippingPrice: order.ShippingPrice,
		TotalPrice:    order.TotalPrice,
		Status:        string(models.OrderStatusPending),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pid := range productIDs {
			result := reserveStock(tx, pid, need[pid])
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&productRow{}).Where("id = ?", pid).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return store.ErrNotFound
				}
				return store.ErrInsufficientStock
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return err
	}

	*order = row.toModel()
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var row orderRow
	if err := s.db.WithContext(ctx).Preload("Items").First(&row, oid).Error; err != nil {
		return nil, notFound(err)
	}
	o := row.toModel()
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Items").Order("created_at DESC")
	if userID != "" {
		uid, err := parseID(userID)
		if err != nil {
			return []models.Order{}, nil
		}
		query = query.Where("user_id = ?", uid)
	}

	var rows []orderRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toModel())
	}
	return orders, nil
}

// statusChange 回傳轉換前必須處於的狀態與要更新的欄位
func statusChange(status models.OrderStatus, at time.Time) (models.OrderStatus, map[string]interface{}, bool) {
	columns := map[string]interface{}{"status": string(status), "updated_at": at}
	switch status {
	case models.OrderStatusPaid:
		columns["paid_at"] = at
		return models.OrderStatusPending, columns, true
	case models.OrderStatusDelivered:
		columns["delivered_at"] = at
		return models.OrderStatusPaid, columns, true
	default:
		return "", nil, false
	}
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, at time.Time) (*models.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	from, columns, ok := statusChange(status, at)
	if !ok {
		return nil, store.ErrInvalidTransition
	}

	result := s.db.WithContext(ctx).
		Model(&orderRow{}).
		Where("id = ? AND status = ?", oid, string(from)).
		Updates(columns)
	if result.Error != nil {
		return nil, fmt.Errorf("update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidTransition
	}
	return s.GetOrder(ctx, id)
}
