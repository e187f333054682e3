package handler

import (
	"net/http"

	"club-treasury/internal/config"
	"club-treasury/internal/logger"
	"club-treasury/internal/mail"
	"club-treasury/internal/metrics"
	"club-treasury/internal/middleware"
	"club-treasury/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter wires services and handlers onto a gin engine.
func NewRouter(cfg *config.Config, db *gorm.DB, sender mail.Sender) *gin.Engine {
	balanceSvc := service.NewBalanceService(db)
	memberSvc := service.NewMemberService(db)

	authH := NewAuthHandler(service.NewAuthService(db), []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL())
	importH := NewImportHandler(service.NewReconcileService(db, cfg.Import))
	memberH := NewMemberHandler(memberSvc, balanceSvc)
	debtH := NewDebtHandler(balanceSvc, service.NewNotifyService(db, sender, cfg.Mail))

	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(logger.Middleware(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-New-Token"},
		AllowCredentials: true,
	}))

	r.GET("/metrics", metrics.Handler())
	r.GET("/api/health", health(db))
	r.POST("/api/login", authH.Login)

	api := r.Group("/api", middleware.JWTAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL()))
	api.POST("/imports", importH.Upload)
	api.GET("/members/balances", memberH.Balances)
	api.POST("/members", memberH.Create)
	api.DELETE("/members/:id", memberH.Delete)
	api.GET("/members/:id/balance", memberH.Balance)
	api.GET("/members/:id/transactions", memberH.Transactions)
	api.GET("/debts", debtH.List)
	api.POST("/debts/notify", debtH.Notify)

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
