package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ShopAPI/models"
)

const (
	DefaultProductTTL = 10 * time.Minute
	DefaultListTTL    = 60 * time.Second

	productPrefix  = "product"
	listPrefix     = "products:list"
	listVersionKey = "products:version"
)

// ProductPage 一次列表查詢的結果
type ProductPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

// ProductCache 單一商品與列表查詢的快取。
// 商品鍵與列表鍵都包含版本號，寫入時沿用讀取時的版本，
// 因此在讀取資料庫期間發生的異動不會被舊資料覆蓋
type ProductCache struct {
	rdb        *redis.Client
	productTTL time.Duration
	listTTL    time.Duration
}

func NewProductCache(rdb *redis.Client) *ProductCache {
	return &ProductCache{
		rdb:        rdb,
		productTTL: DefaultProductTTL,
		listTTL:    DefaultListTTL,
	}
}

func (c *ProductCache) getJSON(ctx context.Context, k string, dst any) error {
	data, err := c.rdb.Get(ctx, k).Bytes()
	if err != nil {
		return missing(err)
	}
	return json.Unmarshal(data, dst)
}

func (c *ProductCache) setJSON(ctx context.Context, k string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, k, data, ttl).Err()
}

func productKey(id, version string) string {
	return key(productPrefix, id, "v"+version)
}

func productVersionKey(id string) string {
	return key(productPrefix, id, "version")
}

// readVersion 讀取版本號，尚未設定時為 "0"
func (c *ProductCache) readVersion(ctx context.Context, k string) (string, error) {
	v, err := c.rdb.Get(ctx, k).Result()
	if err != nil {
		if err == redis.Nil {
			return "0", nil
		}
		return "", err
	}
	return v, nil
}

// GetProduct 讀取商品快取，並回傳讀取時的版本號。
// 未命中時呼叫端須以同一個版本號呼叫 SetProduct
func (c *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, string, error) {
	version, err := c.readVersion(ctx, productVersionKey(id))
	if err != nil {
		return nil, "", err
	}
	var product models.Product
	if err := c.getJSON(ctx, productKey(id, version), &product); err != nil {
		return nil, version, err
	}
	return &product, version, nil
}

// SetProduct 寫入讀取時的版本，期間若已 Invalidate 則寫入的鍵不會再被讀到
func (c *ProductCache) SetProduct(ctx context.Context, version string, product *models.Product) error {
	return c.setJSON(ctx, productKey(product.ID, version), product, c.productTTL)
}

// listKey 以排序後的查詢字串作為鍵，相同條件不同順序會命中同一筆
func listKey(version string, f models.ProductFilter) string {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("offset", strconv.Itoa(f.Offset))
	return key(listPrefix, "v"+version, q.Encode())
}

// GetList 讀取列表快取，並回傳讀取時的列表版本號
func (c *ProductCache) GetList(ctx context.Context, f models.ProductFilter) (*ProductPage, string, error) {
	version, err := c.readVersion(ctx, listVersionKey)
	if err != nil {
		return nil, "", err
	}
	var page ProductPage
	if err := c.getJSON(ctx, listKey(version, f), &page); err != nil {
		return nil, version, err
	}
	return &page, version, nil
}

func (c *ProductCache) SetList(ctx context.Context, version string, f models.ProductFilter, page *ProductPage) error {
	return c.setJSON(ctx, listKey(version, f), page, c.listTTL)
}

// Invalidate 遞增商品與列表的版本號使舊快取失效，id 為空時只處理列表
func (c *ProductCache) Invalidate(ctx context.Context, ids ...string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			if id != "" {
				pipe.Incr(ctx, productVersionKey(id))
			}
		}
		pipe.Incr(ctx, listVersionKey)
		return nil
	})
	return err
}
