package mongostore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"ShopAPI/models"
	"ShopAPI/store"
)

// 以 driver 內建的 mock deployment 測試實際送出的指令與錯誤分支

func newMockStore(mt *mtest.T) *Store {
	s := newStore(mt.Client, mt.DB)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func toDoc(t testing.TB, v interface{}) bson.D {
	t.Helper()
	data, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(data, &d))
	return d
}

func ns(mt *mtest.T, collection string) string {
	return mt.DB.Name() + "." + collection
}

// found 回傳 findAndModify 找到文件時的回應
func found(t testing.TB, v interface{}) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(t, v)})
}

// notMatched findAndModify 沒有符合條件的文件
func notMatched() bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil})
}

func updated(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func commandError() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad value"})
}

func startedCommands(mt *mtest.T, name string) []bson.Raw {
	var out []bson.Raw
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == name {
			out = append(out, evt.Command)
		}
	}
	return out
}

func intValue(v bson.RawValue) int64 {
	if i, ok := v.Int32OK(); ok {
		return int64(i)
	}
	return v.Int64()
}

// stockIncrement 取出 update 指令對 stock 的 $inc 值
func stockIncrement(t testing.TB, cmd bson.Raw) int64 {
	t.Helper()
	v, err := cmd.LookupErr("updates", "0", "u", "$inc", "stock")
	require.NoError(t, err, cmd.String())
	return intValue(v)
}

func testProductDoc(oid primitive.ObjectID, reviews ...reviewDoc) productDoc {
	return productDoc{
		ID:         oid,
		Name:       "ThinkPad",
		Price:      1200,
		Category:   "Laptops",
		Stock:      5,
		Reviews:    reviews,
		NumReviews: len(reviews),
	}
}

func testOrder(userID primitive.ObjectID, productIDs ...primitive.ObjectID) *models.Order {
	order := &models.Order{
		UserID:          userID.Hex(),
		ShippingAddress: models.ShippingAddress{Address: "1 Main St", City: "Taipei", PostalCode: "100", Country: "TW"},
		PaymentMethod:   "PayPal",
	}
	for _, pid := range productIDs {
		order.Items = append(order.Items, models.OrderItem{ProductID: pid.Hex(), Name: "ThinkPad", Price: 30, Quantity: 2})
	}
	models.PriceOrder(order)
	return order
}

func TestMockAddReview(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	productID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	mt.Run("appends review", func(mt *mtest.T) {
		s := newMockStore(mt)
		review := reviewDoc{ID: primitive.NewObjectID(), User: userID, Name: "Jane", Rating: 4}
		doc := testProductDoc(productID, review)
		doc.Rating = 4
		mt.AddMockResponses(found(mt, doc))

		p, err := s.AddReview(context.Background(), productID.Hex(), models.Review{UserID: userID.Hex(), Name: "Jane", Rating: 4})
		require.NoError(mt, err)
		assert.Equal(mt, 1, p.NumReviews)
		assert.Equal(mt, 4.0, p.Rating)
		require.Len(mt, p.Reviews, 1)
		assert.Equal(mt, userID.Hex(), p.Reviews[0].UserID)

		cmds := startedCommands(mt, "findAndModify")
		require.Len(mt, cmds, 1)
		ne, err := cmds[0].LookupErr("query", "reviews.user", "$ne")
		require.NoError(mt, err)
		assert.Equal(mt, userID, ne.ObjectID())
		_, err = cmds[0].LookupErr("update", "0", "$set", "reviews", "$concatArrays")
		assert.NoError(mt, err)
	})

	mt.Run("duplicate review", func(mt *mtest.T) {
		s := newMockStore(mt)
		existing := reviewDoc{ID: primitive.NewObjectID(), User: userID, Name: "Jane", Rating: 5}
		mt.AddMockResponses(
			notMatched(),
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch, toDoc(mt, testProductDoc(productID, existing))),
		)

		_, err := s.AddReview(context.Background(), productID.Hex(), models.Review{UserID: userID.Hex(), Rating: 1})
		assert.ErrorIs(mt, err, store.ErrAlreadyReviewed)
	})

	mt.Run("missing product", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			notMatched(),
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch),
		)

		_, err := s.AddReview(context.Background(), productID.Hex(), models.Review{UserID: userID.Hex(), Rating: 3})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("driver error", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(commandError())

		_, err := s.AddReview(context.Background(), productID.Hex(), models.Review{UserID: userID.Hex(), Rating: 3})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, store.ErrAlreadyReviewed)
		assert.NotErrorIs(mt, err, store.ErrNotFound)
	})
}

func TestMockCreateOrder(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	userID := primitive.NewObjectID()
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	mt.Run("reserves stock then inserts", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(updated(1), updated(1), mtest.CreateSuccessResponse())

		order := testOrder(userID, first, second)
		require.NoError(mt, s.CreateOrder(context.Background(), order))
		assert.NotEmpty(mt, order.ID)
		assert.Equal(mt, models.OrderStatusPending, order.Status)
		assert.Len(mt, order.Items, 2)

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 2)
		for _, cmd := range updates {
			assert.EqualValues(mt, -2, stockIncrement(mt, cmd))
			gte, err := cmd.LookupErr("updates", "0", "q", "stock", "$gte")
			require.NoError(mt, err)
			assert.EqualValues(mt, 2, intValue(gte))
		}
		assert.Len(mt, startedCommands(mt, "insert"), 1)
	})

	mt.Run("insufficient stock restores earlier reservations", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			updated(1),
			updated(0),
			updated(1),
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		err := s.CreateOrder(context.Background(), testOrder(userID, first, second))
		assert.ErrorIs(mt, err, store.ErrInsufficientStock)

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 3)
		assert.EqualValues(mt, 2, stockIncrement(mt, updates[2]))
		assert.Empty(mt, startedCommands(mt, "insert"))
	})

	mt.Run("missing product", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			updated(0),
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch),
		)

		err := s.CreateOrder(context.Background(), testOrder(userID, first))
		assert.ErrorIs(mt, err, store.ErrNotFound)
		// 沒有已扣除的庫存，不需歸還
		assert.Len(mt, startedCommands(mt, "update"), 1)
	})

	mt.Run("failed restore is reported", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			updated(1),
			updated(0),
			commandError(),
			mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		err := s.CreateOrder(context.Background(), testOrder(userID, first, second))
		assert.ErrorIs(mt, err, store.ErrInsufficientStock)
		assert.Contains(mt, err.Error(), "restore stock of product")
	})

	mt.Run("insert failure restores stock", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(updated(1), commandError(), updated(1))

		err := s.CreateOrder(context.Background(), testOrder(userID, first))
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "insert order")

		updates := startedCommands(mt, "update")
		require.Len(mt, updates, 2)
		assert.EqualValues(mt, -2, stockIncrement(mt, updates[0]))
		assert.EqualValues(mt, 2, stockIncrement(mt, updates[1]))
	})

	mt.Run("oversized quantities never reach the server", func(mt *mtest.T) {
		s := newMockStore(mt)
		order := testOrder(userID, first, first)
		order.Items[0].Quantity = math.MaxInt/2 + 1
		order.Items[1].Quantity = math.MaxInt/2 + 1

		err := s.CreateOrder(context.Background(), order)
		assert.ErrorIs(mt, err, store.ErrInvalidQuantity)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestMockUpdateOrderStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	orderID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	orderDocWith := func(status models.OrderStatus) orderDoc {
		return orderDoc{ID: orderID, User: userID, Status: string(status), TotalPrice: 70}
	}

	mt.Run("pending to paid", func(mt *mtest.T) {
		s := newMockStore(mt)
		doc := orderDocWith(models.OrderStatusPaid)
		doc.PaidAt = &at
		mt.AddMockResponses(found(mt, doc))

		order, err := s.UpdateOrderStatus(context.Background(), orderID.Hex(), models.OrderStatusPaid, at)
		require.NoError(mt, err)
		assert.Equal(mt, models.OrderStatusPaid, order.Status)
		require.NotNil(mt, order.PaidAt)

		cmds := startedCommands(mt, "findAndModify")
		require.Len(mt, cmds, 1)
		from, err := cmds[0].LookupErr("query", "status")
		require.NoError(mt, err)
		assert.Equal(mt, string(models.OrderStatusPending), from.StringValue())
	})

	mt.Run("missing order", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			notMatched(),
			mtest.CreateCursorResponse(0, ns(mt, ordersCollection), mtest.FirstBatch),
		)

		_, err := s.UpdateOrderStatus(context.Background(), orderID.Hex(), models.OrderStatusPaid, at)
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("wrong current status", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(
			notMatched(),
			mtest.CreateCursorResponse(0, ns(mt, ordersCollection), mtest.FirstBatch, toDoc(mt, orderDocWith(models.OrderStatusPending))),
		)

		_, err := s.UpdateOrderStatus(context.Background(), orderID.Hex(), models.OrderStatusDelivered, at)
		assert.ErrorIs(mt, err, store.ErrInvalidTransition)
	})

	mt.Run("unknown target status", func(mt *mtest.T) {
		s := newMockStore(mt)
		_, err := s.UpdateOrderStatus(context.Background(), orderID.Hex(), models.OrderStatusPending, at)
		assert.ErrorIs(mt, err, store.ErrInvalidTransition)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}

func TestMockFindOneNoDocuments(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get product", func(mt *mtest.T) {
		s := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, productsCollection), mtest.FirstBatch))

		_, err := s.GetProduct(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, store.ErrNotFound)
		assert.NotErrorIs(mt, err, mongo.ErrNoDocuments)
	})
}
