package app

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/djsoulspotti-ops/skajla/api"
	"github.com/djsoulspotti-ops/skajla/config"
	"github.com/djsoulspotti-ops/skajla/database"
	"github.com/djsoulspotti-ops/skajla/router"
	"github.com/djsoulspotti-ops/skajla/services/cron"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
	"github.com/djsoulspotti-ops/skajla/utils/observability"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	appLog, err := logging.Init(getEnv.LOG_LEVEL, getEnv.GO_ENV)
	if err != nil {
		return err
	}
	defer appLog.Closer()

	if getEnv.SENTRY_DSN != "" {
		flush, err := observability.InitSentry(getEnv.SENTRY_DSN, getEnv.GO_ENV, getEnv.RELEASE)
		if err != nil {
			print("Warning: Sentry initialization failed\n")
		} else {
			defer flush()
		}
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	// Achievement, badge and challenge catalogs are upserted on every boot.
	if err := database.NewSeeder(store.DB()).SeedAll(); err != nil {
		print("Warning: catalog seed failed\n")
		print("Error: ", err.Error(), "\n")
	}

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	// Custom Logger
	app.Use(logger.New())

	app.Use(recover.New())

	// Setup Routes
	runtime := router.SetupRoutes(app, store, appLog)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store, runtime.Presence, runtime.Groups, runtime.Blacklist, runtime.Hot, nil, nil)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		runtime.Hot.Close()
		store.Close()
	}()

	// Get the PORT & Start the Server
	return server.Run()

}
