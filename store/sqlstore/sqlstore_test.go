package sqlstore

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"ShopAPI/models"
	"ShopAPI/store"
)

// dryRunDB 只產生SQL不連線資料庫
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "shop:shop@tcp(127.0.0.1:3306)/shop?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestProductScope(t *testing.T) {
	db := dryRunDB(t)
	min, max := 100.0, 500.0

	var rows []productRow
	stmt := db.Scopes(productScope(models.ProductFilter{
		Category: "Laptops",
		MinPrice: &min,
		MaxPrice: &max,
		Search:   "Note_Book",
	})).Find(&rows).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "FROM `products`")
	assert.Contains(t, sql, "category = ?")
	assert.Contains(t, sql, "price >= ?")
	assert.Contains(t, sql, "price <= ?")
	assert.Contains(t, sql, "LOWER(name) LIKE ?")
	assert.Equal(t, []interface{}{"Laptops", 100.0, 500.0, `%note\_book%`}, stmt.Vars)
}

func TestProductScopeEmpty(t *testing.T) {
	db := dryRunDB(t)

	var rows []productRow
	stmt := db.Scopes(productScope(models.ProductFilter{})).Find(&rows).Statement
	assert.NotContains(t, stmt.SQL.String(), "WHERE")
	assert.Empty(t, stmt.Vars)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, bad := range []string{"", "0", "abc", "507f1f77bcf86cd799439011"} {
		_, err := parseID(bad)
		assert.ErrorIs(t, err, store.ErrNotFound, bad)
	}
}

func TestDialector(t *testing.T) {
	_, err := dialector("sqlite", "file::memory:")
	assert.Error(t, err)

	d, err := dialector(DriverPostgres, "host=localhost")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}

func TestProductRowToModel(t *testing.T) {
	row := productRow{
		ID:      7,
		Name:    "Lenovo",
		Reviews: []reviewRow{{ID: 1, ProductID: 7, UserID: 3, Rating: 4}},
	}
	p := row.toModel()
	assert.Equal(t, "7", p.ID)
	require.Len(t, p.Reviews, 1)
	assert.Equal(t, "3", p.Reviews[0].UserID)
	assert.True(t, p.HasReviewFrom("3"))
}

func TestReserveStockStatement(t *testing.T) {
	db := dryRunDB(t)

	stmt := reserveStock(db, 7, 3).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, "UPDATE `products` SET `stock`=stock - ?")
	assert.Contains(t, sql, "id = ? AND stock >= ?")
	assert.Equal(t, []interface{}{3, uint(7), 3}, stmt.Vars)
}

func TestStockNeeds(t *testing.T) {
	need, productIDs, items, err := stockNeeds(&models.Order{Items: []models.OrderItem{
		{ProductID: "9", Quantity: 1},
		{ProductID: "2", Quantity: 4},
		{ProductID: "9", Quantity: 2},
	}})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{9: 3, 2: 4}, need)
	// 依ID排序扣庫存
	assert.Equal(t, []uint{2, 9}, productIDs)
	assert.Len(t, items, 3)

	_, _, _, err = stockNeeds(&models.Order{Items: []models.OrderItem{{ProductID: "abc", Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, _, err = stockNeeds(&models.Order{Items: []models.OrderItem{
		{ProductID: "9", Quantity: math.MaxInt/2 + 1},
		{ProductID: "9", Quantity: math.MaxInt/2 + 1},
	}})
	assert.ErrorIs(t, err, store.ErrInvalidQuantity)

	_, _, _, err = stockNeeds(&models.Order{Items: []models.OrderItem{{ProductID: "9", Quantity: 0}}})
	assert.ErrorIs(t, err, store.ErrInvalidQuantity)
}

func TestStatusChange(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	from, columns, ok := statusChange(models.OrderStatusPaid, at)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPending, from)
	assert.Equal(t, at, columns["paid_at"])
	assert.Equal(t, "paid", columns["status"])

	from, columns, ok = statusChange(models.OrderStatusDelivered, at)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPaid, from)
	assert.Equal(t, at, columns["delivered_at"])
	assert.NotContains(t, columns, "paid_at")

	_, _, ok = statusChange(models.OrderStatusPending, at)
	assert.False(t, ok)
}

func TestOrderStatusUpdateStatement(t *testing.T) {
	db := dryRunDB(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	from, columns, _ := statusChange(models.OrderStatusPaid, at)

	stmt := db.Model(&orderRow{}).Where("id = ? AND status = ?", uint(4), string(from)).Updates(columns).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, "UPDATE `orders` SET")
	assert.Contains(t, sql, "`paid_at`=?")
	assert.Contains(t, sql, "id = ? AND status = ?")
	assert.Contains(t, stmt.Vars, "pending")
}
