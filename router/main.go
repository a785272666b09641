package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/djsoulspotti-ops/skajla/database"
	"github.com/djsoulspotti-ops/skajla/handlers"
	ai_handlers "github.com/djsoulspotti-ops/skajla/handlers/ai"
	auth_handlers "github.com/djsoulspotti-ops/skajla/handlers/auth"
	chat_handlers "github.com/djsoulspotti-ops/skajla/handlers/chat"
	gamification_handlers "github.com/djsoulspotti-ops/skajla/handlers/gamification"
	notification_handlers "github.com/djsoulspotti-ops/skajla/handlers/notification"
	telemetry_handlers "github.com/djsoulspotti-ops/skajla/handlers/telemetry"
	timer_handlers "github.com/djsoulspotti-ops/skajla/handlers/timer"
	ws_handlers "github.com/djsoulspotti-ops/skajla/handlers/ws"
	"github.com/djsoulspotti-ops/skajla/services/aichat"
	"github.com/djsoulspotti-ops/skajla/services/gamification"
	"github.com/djsoulspotti-ops/skajla/services/groups"
	"github.com/djsoulspotti-ops/skajla/services/leaderboard"
	"github.com/djsoulspotti-ops/skajla/services/messaging"
	"github.com/djsoulspotti-ops/skajla/services/notification"
	"github.com/djsoulspotti-ops/skajla/services/presence"
	"github.com/djsoulspotti-ops/skajla/services/quiz"
	"github.com/djsoulspotti-ops/skajla/services/realtime"
	"github.com/djsoulspotti-ops/skajla/services/school"
	"github.com/djsoulspotti-ops/skajla/services/studytimer"
	"github.com/djsoulspotti-ops/skajla/services/telemetry"
	"github.com/djsoulspotti-ops/skajla/services/tenantguard"
	"github.com/djsoulspotti-ops/skajla/utils/auth"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
	"github.com/djsoulspotti-ops/skajla/utils/middleware"
)

// Runtime exposes the long-lived services the scheduler needs after route
// setup. Everything else stays private to the request path.
type Runtime struct {
	Presence  *presence.Service
	Groups    *groups.Service
	Blacklist *auth.BlacklistService
	Hot       *cache.RedisCache
}

// SetupRoutes wires services, middleware and the full HTTP surface.
func SetupRoutes(app *fiber.App, store *database.GORMStore, appLog *logging.Log) *Runtime {
	// Get JWT secret from environment
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "skajla-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: jwtSecret,
		Issuer: jwtIssuer,
	})

	db := store.DB()

	// The hot-state store is not optional: presence, rate limits and quiz
	// answer keys all live in it.
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	hot, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	blacklist := auth.NewBlacklistService(db)
	lockout := middleware.NewLoginLockout(hot)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	moduleGate := middleware.NewModuleGate(db)

	// Services. The hub broadcaster closes the realtime loop for the award
	// engine: unlock pushes go out over the same hub the dispatcher serves.
	guard := tenantguard.New(db, appLog)
	hub := realtime.NewHub(appLog)
	broadcaster := realtime.NewHubBroadcaster(hub)
	engine := gamification.NewEngine(db, appLog, broadcaster)
	pres := presence.New(hot, db)
	messagingService := messaging.NewService(db, guard, hot)
	groupService := groups.NewService(db, guard, engine, appLog)
	boardService := leaderboard.NewService(db, hot)
	quizService := quiz.NewService(db, hot, engine)
	timerService := studytimer.NewService(db, engine)
	schoolService := school.NewService(db)
	notificationService := notification.NewService(db, broadcaster)
	telemetryService := telemetry.NewService(db)

	// The assistant backend is optional per deployment; without it the chat
	// endpoint reports the assistant unavailable.
	var responder aichat.Responder
	if aiBaseURL := os.Getenv("AI_BASE_URL"); aiBaseURL != "" {
		responder = aichat.NewHTTPResponder(aichat.HTTPResponderConfig{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: aiBaseURL,
			Model:   os.Getenv("AI_MODEL"),
		})
	}
	aiChatService := aichat.NewService(db, hot, engine, responder, appLog)

	dispatcher := realtime.NewDispatcher(hub, pres, messagingService, guard, engine, hot, appLog)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, blacklist, lockout, schoolService, engine)
	chatHandler := chat_handlers.NewChatHandler(messagingService, guard)
	instantHandler := chat_handlers.NewInstantHandler(groupService)
	gamificationHandler := gamification_handlers.NewHandler(db, engine, boardService)
	aiHandler := ai_handlers.NewHandler(aiChatService, quizService)
	timerHandler := timer_handlers.NewHandler(db, timerService)
	telemetryHandler := telemetry_handlers.NewHandler(telemetryService)
	notificationHandler := notification_handlers.NewNotificationHandler(notificationService)
	wsHandler := ws_handlers.NewHandler(db, jwtManager, blacklist, dispatcher)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store)
	})

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// Websocket endpoint: token rides the query string because browsers
	// cannot set headers on the upgrade request.
	app.Get("/ws", wsHandler.Upgrade, wsHandler.Serve())

	api := app.Group("/api")

	// Auth routes (public)
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	api.Get("/user/me", authMiddleware.Required(), authHandler.Me)

	// Messaging routes
	api.Get("/conversations", authMiddleware.Required(), moduleGate.Require("chat"), chatHandler.Conversations)
	api.Get("/messages/:chat_id", authMiddleware.Required(), moduleGate.Require("chat"), chatHandler.Messages)

	chat := api.Group("/chat", authMiddleware.Required(), moduleGate.Require("chat"))
	chat.Post("/private", chatHandler.OpenPrivate)

	// Instant study groups
	chat.Post("/instant", instantHandler.Create)
	chat.Get("/instant/list", instantHandler.List)
	chat.Post("/instant/:id/join", instantHandler.Join)
	chat.Post("/instant/:id/leave", instantHandler.Leave)
	chat.Delete("/instant/:id", instantHandler.Delete)

	// Gamification routes
	game := api.Group("/gamification", authMiddleware.Required(), moduleGate.Require("gamification"))
	game.Get("/profile", gamificationHandler.Profile)
	game.Get("/leaderboard", gamificationHandler.Leaderboard)
	game.Get("/leaderboard/smart", gamificationHandler.SmartLeaderboard)
	game.Get("/challenges", gamificationHandler.Challenges)
	game.Post("/weekend-pass", gamificationHandler.BuyWeekendPass)

	// AI assistant routes
	ai := api.Group("/ai", authMiddleware.Required(), moduleGate.Require("ai"))
	ai.Post("/chat", aiHandler.Chat)
	ai.Post("/quiz/get", aiHandler.GetQuiz)
	ai.Post("/quiz/submit", aiHandler.SubmitQuiz)
	ai.Get("/quiz/progress", aiHandler.QuizProgress)

	// Study timer routes
	timer := api.Group("/timer", authMiddleware.Required())
	timer.Post("/start", timerHandler.Start)
	timer.Post("/stop", timerHandler.Stop)
	timer.Post("/pause", timerHandler.Pause)
	timer.Post("/resume", timerHandler.Resume)
	timer.Get("/active", timerHandler.Active)
	timer.Get("/stats", timerHandler.Stats)
	timer.Get("/history", timerHandler.History)
	timer.Get("/types", timerHandler.Types)

	// Telemetry ingestion
	events := api.Group("/telemetry/events", authMiddleware.Required())
	events.Post("/track", telemetryHandler.Track)
	events.Post("/batch", telemetryHandler.Batch)

	// Notifications
	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.GetNotifications)
	notifications.Get("/unread-count", notificationHandler.GetUnreadCount)
	notifications.Post("/read-all", notificationHandler.MarkAllRead)
	notifications.Post("/:id/read", notificationHandler.MarkRead)
	notifications.Delete("/:id", notificationHandler.Delete)

	return &Runtime{
		Presence:  pres,
		Groups:    groupService,
		Blacklist: blacklist,
		Hot:       hot,
	}
}
