package httptransport

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xurst/simple-generator/internal/config"
	"github.com/xurst/simple-generator/internal/domain"
	"github.com/xurst/simple-generator/internal/health"
	"github.com/xurst/simple-generator/internal/monitoring"
	"github.com/xurst/simple-generator/internal/service"
	"github.com/xurst/simple-generator/internal/websocket"
)

// RouterDependencies 路由依赖集合
type RouterDependencies struct {
	Config    *config.Config
	History   *service.HistoryService
	Inbox     *service.InboxService
	Generator *service.GeneratorService
	TTLConfig domain.TTLConfigFunc
	Notify    domain.NotifyFunc
	Hub       *websocket.Hub
	Metrics   *monitoring.Metrics
	Health    *health.HealthChecker
	Logger    *zap.Logger
}

// NewRouter 创建 HTTP 路由
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.Config.CORS))

	// 运维端点
	if deps.Health != nil {
		h := deps.Health.Handler()
		router.GET("/healthz", gin.WrapF(h.LiveEndpoint))
		router.GET("/readyz", gin.WrapF(h.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// UI 实时事件推送
	if deps.Hub != nil {
		router.GET("/ws", deps.Hub.HandleConnection)
	}

	handler := &apiHandler{deps: deps}

	api := router.Group("/api")
	{
		api.POST("/passwords", handler.generatePassword)
		api.POST("/mailboxes", handler.generateMailbox)

		api.GET("/history", handler.listHistory)
		api.POST("/history/:id/copy", handler.copyRecord)

		api.GET("/inbox", handler.listInbox)
		api.POST("/inbox/refresh", handler.refreshInbox)
		api.DELETE("/inbox/messages", handler.trashAllMail)
		api.GET("/inbox/:address/messages/:id", handler.messageBody)
		api.POST("/inbox/:address/messages/:id/collapse", handler.collapseMessage)
		api.DELETE("/inbox/:address/messages/:id", handler.trashMessage)
	}

	return router
}

// corsMiddleware 按配置构造 CORS 中间件
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}

	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(corsConfig)
}
