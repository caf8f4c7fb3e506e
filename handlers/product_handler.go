package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ShopAPI/cache"
	"ShopAPI/middleware"
	"ShopAPI/models"
	"ShopAPI/store"
)

type createProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Category    string  `json:"category" binding:"required"`
	Description string  `json:"description"`
	Image       string  `json:"image" binding:"required"`
	Stock       int     `json:"stock" binding:"min=0"`
}

type updateProductRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1"`
	Price       *float64 `json:"price" binding:"omitempty,gt=0"`
	Category    *string  `json:"category" binding:"omitempty,min=1"`
	Description *string  `json:"description"`
	Image       *string  `json:"image" binding:"omitempty,min=1"`
	Stock       *int     `json:"stock" binding:"omitempty,min=0"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type productListResponse struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

func parseFloatQuery(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%s must be a finite non-negative number", name)
	}
	return &v, nil
}

func parseIntQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

// parseProductFilter 解析商品列表的查詢條件
func parseProductFilter(c *gin.Context) (models.ProductFilter, error) {
	filter := models.ProductFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
	}

	var err error
	if filter.MinPrice, err = parseFloatQuery(c, "minPrice"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parseFloatQuery(c, "maxPrice"); err != nil {
		return filter, err
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return filter, errors.New("minPrice must not exceed maxPrice")
	}

	limit, err := parseIntQuery(c, "limit")
	if err != nil {
		return filter, err
	}
	//限制最高查詢數量
	filter.Limit = store.NormalizeLimit(limit)

	if filter.Offset, err = parseIntQuery(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// GetProductListHandler 查詢商品列表
// @Summary list products
// @Tags products
// @Produce json
// @Param category query string false "exact category"
// @Param minPrice query number false "minimum price"
// @Param maxPrice query number false "maximum price"
// @Param search query string false "case-insensitive name search"
// @Param limit query int false "page size (default 50, max 100)"
// @Param offset query int false "offset"
// @Success 200 {object} productListResponse
// @Failure 400 {object} map[string]string
// @Router /products [get]
func (h *Handler) GetProductListHandler(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	ctx := c.Request.Context()

	//嘗試從Redis讀取商品列表，如失敗則從資料庫讀取並儲存至Redis
	page, version, err := h.Products.GetList(ctx, filter)
	if err != nil {
		miss := errors.Is(err, cache.ErrMiss)
		if !miss {
			h.log(c).Warn().Err(err).Msg("無法從Redis讀取商品列表")
		}

		products, total, err := h.Store.ListProducts(ctx, filter)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to load products", err)
			return
		}
		page = &cache.ProductPage{Products: products, Total: total}
		if miss {
			if err := h.Products.SetList(ctx, version, filter, page); err != nil {
				h.log(c).Warn().Err(err).Msg("無法將商品列表存入Redis")
			}
		}
	}

	c.JSON(http.StatusOK, productListResponse{
		Products: page.Products,
		Total:    page.Total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// GetProductHandler 查詢商品詳細資料
// @Summary fetch a product
// @Tags products
// @Produce json
// @Param id path string true "product id"
// @Success 200 {object} models.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (h *Handler) GetProductHandler(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	product, version, err := h.Products.GetProduct(ctx, id)
	if err == nil {
		c.JSON(http.StatusOK, product)
		return
	}
	miss := errors.Is(err, cache.ErrMiss)
	if !miss {
		h.log(c).Warn().Err(err).Str("product_id", id).Msg("無法從Redis讀取商品")
	}

	product, err = h.Store.GetProduct(ctx, id)
	if err != nil {
		respondStoreError(c, "Product not found", err)
		return
	}
	if miss {
		if err := h.Products.SetProduct(ctx, version, product); err != nil {
			h.log(c).Warn().Err(err).Str("product_id", id).Msg("無法將商品存入Redis")
		}
	}

	c.JSON(http.StatusOK, product)
}

// CreateProductHandler 新增商品
// @Summary create a product
// @Tags products
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param product body createProductRequest true "product"
// @Success 201 {object} models.Product
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /products [post]
func (h *Handler) CreateProductHandler(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product data", err)
		return
	}

	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		Description: req.Description,
		Image:       req.Image,
		Stock:       req.Stock,
		Reviews:     []models.Review{},
	}
	if err := h.Store.CreateProduct(c.Request.Context(), product); err != nil {
		respondStoreError(c, "Failed to create product", err)
		return
	}
	h.invalidateProducts(c)

	c.JSON(http.StatusCreated, product)
}

// UpdateProductHandler 修改商品，只更新有提供的欄位
// @Summary update a product
// @Tags products
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "product id"
// @Param product body updateProductRequest true "fields to update"
// @Success 200 {object} models.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [put]
func (h *Handler) UpdateProductHandler(c *gin.Context) {
	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product data", err)
		return
	}

	id := c.Param("id")
	product, err := h.Store.UpdateProduct(c.Request.Context(), id, models.ProductUpdate{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Description: req.Description,
		Image:       req.Image,
		Stock:       req.Stock,
	})
	if err != nil {
		respondStoreError(c, "Product not found", err)
		return
	}
	h.invalidateProducts(c, id)

	c.JSON(http.StatusOK, product)
}

// DeleteProductHandler 刪除商品，評論一併刪除
// @Summary delete a product
// @Tags products
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "product id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [delete]
func (h *Handler) DeleteProductHandler(c *gin.Context) {
	id := c.Param("id")
	if err := h.Store.DeleteProduct(c.Request.Context(), id); err != nil {
		respondStoreError(c, "Product not found", err)
		return
	}
	h.invalidateProducts(c, id)

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
	})
}

// AddReviewHandler 新增商品評論，每位使用者對同一商品只能評論一次
// @Summary add a review
// @Tags products
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "product id"
// @Param review body reviewRequest true "rating 1-5 and comment"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id}/reviews [post]
func (h *Handler) AddReviewHandler(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Rating must be an integer between 1 and 5", err)
		return
	}
	ctx := c.Request.Context()

	user, err := h.Store.GetUser(ctx, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusUnauthorized, "Not authorized", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to load user", err)
		return
	}

	id := c.Param("id")
	product, err := h.Store.AddReview(ctx, id, models.Review{
		UserID:  user.ID,
		Name:    user.Name,
		Rating:  req.Rating,
		Comment: strings.TrimSpace(req.Comment),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyReviewed):
			respondError(c, http.StatusBadRequest, "Product already reviewed", err)
		case errors.Is(err, store.ErrNotFound):
			respondError(c, http.StatusNotFound, "Product not found", err)
		default:
			respondError(c, http.StatusInternalServerError, "Failed to add review", err)
		}
		return
	}
	h.invalidateProducts(c, id)

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Review added successfully",
		"rating":     product.Rating,
		"numReviews": product.NumReviews,
		"reviews":    product.Reviews,
	})
}
