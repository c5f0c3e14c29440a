package api

import (
	"log/slog"

	"quizgate/internal/api/handlers"
	"quizgate/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// Ledger is the quota surface the API reads
type Ledger interface {
	handlers.QuotaReader
	handlers.StreakReader
}

// Storage is the persistence surface the API reads and writes
type Storage interface {
	handlers.AppStorage
	handlers.QuestionCounter
}

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Storage        Storage
	Ledger         Ledger
	Engine         handlers.Gatekeeper
	Dispatcher     handlers.ForegroundSink
	Bus            handlers.Subscriber
	DriverRegistry handlers.DriverLister
	ActiveDriver   string
	// Agent is set when the agent driver is active; it enables /v1/agent
	Agent          handlers.AgentStatusReader
	APIKey         string
	ParentPINHash  string
	AgentTokenHash string
	Logger         *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler(config.Storage)
	router.GET("/health", healthHandler.GetHealth)

	v1 := router.Group("/v1")
	eventsHandler := handlers.NewEventsHandler(config.Dispatcher, config.Bus, config.Logger)

	// The agent authenticates with its own token, not the UI key
	if config.Agent != nil {
		agentHandler := handlers.NewAgentHandler(config.Agent)
		agentGroup := v1.Group("/agent")
		agentGroup.Use(middleware.AgentAuth(config.AgentTokenHash))
		agentGroup.GET("/apps", agentHandler.ListAppStatuses)
		agentGroup.GET("/apps/:id", agentHandler.GetAppStatus)
		agentGroup.POST("/foreground", eventsHandler.PostForeground)
	}

	authed := v1.Group("")
	authed.Use(middleware.APIKey(config.APIKey))
	{
		appsHandler := handlers.NewAppsHandler(
			config.Storage,
			config.Ledger,
			config.Engine,
			config.ParentPINHash,
			config.Logger,
		)
		authed.GET("/apps", appsHandler.ListApps)
		authed.POST("/apps", appsHandler.CreateApp)
		authed.GET("/apps/:id", appsHandler.GetApp)
		authed.PATCH("/apps/:id", appsHandler.UpdateApp)
		authed.DELETE("/apps/:id", appsHandler.DeleteApp)
		authed.GET("/apps/:id/quota", appsHandler.GetQuota)
		authed.GET("/apps/:id/attempts", appsHandler.ListAttempts)

		sessionsHandler := handlers.NewSessionsHandler(config.Engine, config.Logger)
		authed.GET("/sessions", sessionsHandler.ListSessions)
		authed.GET("/sessions/:app_id", sessionsHandler.GetSession)
		authed.POST("/sessions/:app_id/answer", sessionsHandler.SubmitAnswer)
		authed.POST("/sessions/:app_id/bypass", sessionsHandler.Bypass)
		authed.POST("/sessions/:app_id/abandon", sessionsHandler.Abandon)

		authed.POST("/events/foreground", eventsHandler.PostForeground)
		authed.GET("/events/stream", eventsHandler.Stream)

		streakHandler := handlers.NewStreakHandler(config.Ledger, config.Logger)
		authed.GET("/streak", streakHandler.GetStreak)

		if config.DriverRegistry != nil {
			driversHandler := handlers.NewDriversHandler(config.DriverRegistry, config.ActiveDriver)
			authed.GET("/drivers", driversHandler.ListDrivers)
		}
	}

	return router
}
