package routers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "ShopAPI/docs"
	"ShopAPI/handlers"
	"ShopAPI/middleware"
)

type Options struct {
	Origins   []string
	UploadDir string
	StaticDir string
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Authorization", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// staticFallback 未匹配的GET請求嘗試從前端建置資料夾提供檔案
func staticFallback(staticDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if staticDir != "" && (c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead) {
			name := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
			if info, err := os.Stat(name); err == nil && !info.IsDir() {
				c.File(name)
				return
			}
		}

		c.JSON(http.StatusNotFound, gin.H{
			"message": "Not Found",
			"error":   c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

func SetupRouters(h *handlers.Handler, opts Options) *gin.Engine {
	//建立Gin路由器
	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(h.Logger),
		middleware.RecoverMiddleware(h.Logger),
		corsMiddleware(opts.Origins),
	)
	if err := router.SetTrustedProxies(nil); err != nil {
		h.Logger.Warn().Err(err).Msg("無法設定 trusted proxies")
	}

	//設定商品圖片靜態資源路徑
	if opts.UploadDir != "" {
		router.Static("/uploads", opts.UploadDir)
	}

	//API文件
	router.GET("/api-docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/api-docs/index.html")
	})
	router.GET("/api-docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/api-docs/doc.json"))))

	router.GET("/", handlers.LivenessHandler)
	router.GET("/healthz", h.HealthHandler)

	checkLogin := middleware.CheckLoginMiddleware()
	checkAdmin := middleware.CheckAdminPermissionMiddleware()

	////使用中間件檢查是否登入，Token不合法時視為未登入
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(h.Tokens, h.Logger))
	{
		products := api.Group("/products")
		//查詢商品列表
		products.GET("", h.GetProductListHandler)
		//查詢商品詳細資料
		products.GET("/:id", h.GetProductHandler)
		//新增商品
		products.POST("", checkLogin, checkAdmin, h.CreateProductHandler)
		//修改商品
		products.PUT("/:id", checkLogin, checkAdmin, h.UpdateProductHandler)
		//刪除商品
		products.DELETE("/:id", checkLogin, checkAdmin, h.DeleteProductHandler)
		//新增評論
		products.POST("/:id/reviews", checkLogin, h.AddReviewHandler)

		users := api.Group("/users")
		//註冊帳號
		users.POST("/register", h.RegisterHandler)
		//登入帳號
		users.POST("/login", h.LoginHandler)
		//重設密碼
		users.POST("/reset-password", h.RequestPasswordResetHandler)
		users.POST("/reset-password/:token", h.ResetPasswordHandler)
		//登出
		users.POST("/logout", checkLogin, h.LogOutHandler)
		//查詢與修改使用者資料
		users.GET("/profile", checkLogin, h.GetUserProfileHandler)
		users.PUT("/profile", checkLogin, h.UpdateUserProfileHandler)
		//查詢使用者列表
		users.GET("", checkLogin, checkAdmin, h.GetUserListHandler)
		users.PUT("/:id", checkLogin, checkAdmin, h.UpdateUserHandler)
		users.DELETE("/:id", checkLogin, checkAdmin, h.DeleteUserHandler)

		orders := api.Group("/orders")
		//送出訂單
		orders.POST("", checkLogin, h.CreateOrderHandler)
		//查詢自己的訂單
		orders.GET("/myorders", checkLogin, h.GetMyOrdersHandler)
		//查詢所有訂單
		orders.GET("", checkLogin, checkAdmin, h.GetOrderListHandler)
		//查詢訂單詳細資訊
		orders.GET("/:id", checkLogin, h.GetOrderHandler)
		orders.PUT("/:id/pay", checkLogin, h.PayOrderHandler)
		orders.PUT("/:id/deliver", checkLogin, checkAdmin, h.DeliverOrderHandler)

		//上傳商品圖片
		api.POST("/upload", checkLogin, checkAdmin, h.UploadImageHandler)
	}

	router.NoRoute(staticFallback(opts.StaticDir))

	return router
}
