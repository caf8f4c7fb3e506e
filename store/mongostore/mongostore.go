// Package mongostore persists the catalog, users and orders in MongoDB.
// Reviews live embedded in their product document.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ShopAPI/models"
	"ShopAPI/store"
)

const (
	productsCollection = "products"
	usersCollection    = "users"
	ordersCollection   = "orders"
)

type Store struct {
	client   *mongo.Client
	products *mongo.Collection
	users    *mongo.Collection
	orders   *mongo.Collection
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open 連線並確認 MongoDB 可用，同時建立索引
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s := newStore(client, client.Database(database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:   client,
		products: db.Collection(productsCollection),
		users:    db.Collection(usersCollection),
		orders:   db.Collection(ordersCollection),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = s.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create products index: %w", err)
	}

	_, err = s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create orders index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ID格式錯誤視同找不到資料
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, store.ErrNotFound
	}
	return oid, nil
}

// productFilter 將查詢條件轉成 MongoDB filter
func productFilter(f models.ProductFilter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}
	if f.Search != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	return filter
}

func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	filter := productFilter(f)

	total, err := s.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(store.NormalizeLimit(f.Limit)))
	cursor, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}

	products := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.toModel())
	}
	return products, total, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc productDoc
	err = s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}

	p := doc.toModel()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	now := s.now()
	doc := productDoc{
		Name:        product.Name,
		Price:       product.Price,
		Category:    product.Category,
		Description: product.Description,
		Image:       product.Image,
		Stock:       product.Stock,
		Reviews:     []reviewDoc{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result, err := s.products.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	doc.ID = result.InsertedID.(primitive.ObjectID)
	*product = doc.toModel()
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": s.now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}
	if update.Stock != nil {
		set["stock"] = *update.Stock
	}

	var doc productDoc
	err = s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	p := doc.toModel()
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := s.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddReview(ctx context.Context, productID string, review models.Review) (*models.Product, error) {
	oid, err := objectID(productID)
	if err != nil {
		return nil, err
	}
	userID, err := primitive.ObjectIDFromHex(review.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid reviewer id %q: %w", review.UserID, err)
	}

	now := s.now()
	doc := reviewDoc{
		ID:        primitive.NewObjectID(),
		User:      userID,
		Name:      review.Name,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: now,
	}

	// 單一條件更新：使用者尚未評論才附加，並同時重算平均分數
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "reviews", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$reviews", bson.A{}}}},
				bson.D{{Key: "$literal", Value: bson.A{doc}}},
			}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "numReviews", Value: bson.D{{Key: "$size", Value: "$reviews"}}},
			{Key: "rating", Value: bson.D{{Key: "$round", Value: bson.A{
				bson.D{{Key: "$avg", Value: "$reviews.rating"}}, 2,
			}}}},
			{Key: "updatedAt", Value: now},
		}}},
	}

	var updated productDoc
	err = s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "reviews.user": bson.M{"$ne": userID}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
		return nil, store.ErrAlreadyReviewed
	}
	if err != nil {
		return nil, fmt.Errorf("add review: %w", err)
	}

	p := updated.toModel()
	return &p, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := s.now()
	doc := userDoc{
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.Password,
		Role:      string(user.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	doc.ID = result.InsertedID.(primitive.ObjectID)
	*user = doc.toModel()
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u := doc.toModel()
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toModel())
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	oid, err := objectID(user.ID)
	if err != nil {
		return err
	}

	user.UpdatedAt = s.now()
	result, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":      user.Name,
		"email":     user.Email,
		"password":  user.Password,
		"role":      string(user.Role),
		"updatedAt": user.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// restoreStock 訂單失敗時歸還已扣除的庫存，回傳所有無法歸還的商品
func (s *Store) restoreStock(reserved map[primitive.ObjectID]int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for oid, quantity := range reserved {
		if _, err := s.products.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"stock": quantity}}); err != nil {
			errs = append(errs, fmt.Errorf("restore stock of product %s (+%d): %w", oid.Hex(), quantity, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	userID, err := primitive.ObjectIDFromHex(order.UserID)
	if err != nil {
		return fmt.Errorf("invalid order user id %q: %w", order.UserID, err)
	}

	need := make(map[primitive.ObjectID]int)
	items := make([]orderItemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		oid, err := objectID(item.ProductID)
		if err != nil {
			return err
		}
		if need[oid], err = store.AddQuantity(need[oid], item.Quantity); err != nil {
			return err
		}
		items = append(items, orderItemDoc{
			Product:  oid,
			Name:     item.Name,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	reserved := make(map[primitive.ObjectID]int)
	for oid, quantity := range need {
		result, err := s.products.UpdateOne(ctx,
			bson.M{"_id": oid, "stock": bson.M{"$gte": quantity}},
			bson.M{"$inc": bson.M{"stock": -quantity}},
		)
		if err != nil {
			return errors.Join(fmt.Errorf("reserve stock: %w", err), s.restoreStock(reserved))
		}
		if result.MatchedCount == 0 {
			restoreErr := s.restoreStock(reserved)
			count, err := s.products.CountDocuments(ctx, bson.M{"_id": oid})
			if err != nil {
				return errors.Join(fmt.Errorf("count product: %w", err), restoreErr)
			}
			if count == 0 {
				return errors.Join(store.ErrNotFound, restoreErr)
			}
			return errors.Join(store.ErrInsufficientStock, restoreErr)
		}
		reserved[oid] = quantity
	}

	now := s.now()
	doc := orderDoc{
		User:  userID,
		Items: items,
		ShippingAddress: shippingAddressDoc{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		PaymentMethod: order.PaymentMethod,
		ItemsPrice:    order.ItemsPrice,
		ShippingPrice: order.ShippingPrice,
		TotalPrice:    order.TotalPrice,
		Status:        string(models.OrderStatusPending),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result, err := s.orders.InsertOne(ctx, doc)
	if err != nil {
		return errors.Join(fmt.Errorf("insert order: %w", err), s.restoreStock(reserved))
	}

	doc.ID = result.InsertedID.(primitive.ObjectID)
	*order = doc.toModel()
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc orderDoc
	err = s.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	o := doc.toModel()
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	filter := bson.M{}
	if userID != "" {
		oid, err := objectID(userID)
		if err != nil {
			return []models.Order{}, nil
		}
		filter["user"] = oid
	}

	cursor, err := s.orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.toModel())
	}
	return orders, nil
}

// previousStatus 回傳轉換到 status 前必須處於的狀態
func previousStatus(status models.OrderStatus) (models.OrderStatus, bool) {
	switch status {
	case models.OrderStatusPaid:
		return models.OrderStatusPending, true
	case models.OrderStatusDelivered:
		return models.OrderStatusPaid, true
	default:
		return "", false
	}
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, at time.Time) (*models.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	from, ok := previousStatus(status)
	if !ok {
		return nil, store.ErrInvalidTransition
	}

	set := bson.M{"status": string(status), "updatedAt": at}
	switch status {
	case models.OrderStatusPaid:
		set["paidAt"] = at
	case models.OrderStatusDelivered:
		set["deliveredAt"] = at
	}

	var doc orderDoc
	err = s.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	o := doc.toModel()
	return &o, nil
}
