package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/djsoulspotti-ops/skajla/database"
	"github.com/djsoulspotti-ops/skajla/model"
	"github.com/djsoulspotti-ops/skajla/services/groups"
	"github.com/djsoulspotti-ops/skajla/services/presence"
	"github.com/djsoulspotti-ops/skajla/utils/auth"
	"github.com/djsoulspotti-ops/skajla/utils/cache"
)

// StorageCleaner reclaims storage when usage crosses the threshold. The core
// only schedules it.
type StorageCleaner interface {
	UsagePercent() (float64, error)
	Cleanup() error
}

// ReportGenerator builds the weekly/monthly reports. Supplied by the caller;
// a failed run is retried at the next window, never sooner.
type ReportGenerator interface {
	GenerateWeekly() error
	GenerateMonthly() error
}

// CronManager manages all scheduled background jobs
type CronManager struct {
	cron  *cron.Cron
	store *database.GORMStore

	presence  *presence.Service
	groups    *groups.Service
	blacklist *auth.BlacklistService
	hot       *cache.RedisCache
	storage   StorageCleaner
	reports   ReportGenerator

	dbFailures int
}

// NewCronManager creates a new cron manager. storage and reports may be nil;
// their jobs are skipped.
func NewCronManager(store *database.GORMStore, pres *presence.Service, grp *groups.Service, blacklist *auth.BlacklistService, hot *cache.RedisCache, storage StorageCleaner, reports ReportGenerator) *CronManager {
	// Seconds precision keeps the short keep-alive intervals expressible
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:      c,
		store:     store,
		presence:  pres,
		groups:    grp,
		blacklist: blacklist,
		hot:       hot,
		storage:   storage,
		reports:   reports,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

func (m *CronManager) registerJobs() error {
	// 1. Every 2 minutes: keep-alive DB ping; recreates the pool after
	// three consecutive failures
	_, err := m.cron.AddFunc("0 */2 * * * *", func() {
		m.logJobStart("db_keepalive_ping")
		m.PingDatabase()
	})
	if err != nil {
		return err
	}

	// 2. Every minute: scrub presence sets of users whose TTL key expired
	_, err = m.cron.AddFunc("0 * * * * *", func() {
		m.ReconcilePresence()
	})
	if err != nil {
		return err
	}

	// 3. Every hour: delete instant groups past their TTL
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("sweep_expired_groups")
		m.SweepExpiredGroups()
	})
	if err != nil {
		return err
	}

	// 4. Every 6 hours: delete instant groups silent for 24h
	_, err = m.cron.AddFunc("0 0 */6 * * *", func() {
		m.logJobStart("sweep_inactive_groups")
		m.SweepInactiveGroups()
	})
	if err != nil {
		return err
	}

	// 5. Daily at midnight: open the new daily window, and the weekly one on
	// Mondays. Without this the boot-seeded challenges lapse and nothing
	// replaces them until a restart.
	_, err = m.cron.AddFunc("0 0 0 * * *", func() {
		m.logJobStart("rotate_challenges")
		m.RotateChallenges()
	})
	if err != nil {
		return err
	}

	// 6. Daily at 3 AM: expired blacklist rows + stale pending quiz keys
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("cleanup_expired_sessions")
		m.CleanupExpiredSessions()
	})
	if err != nil {
		return err
	}

	// 7. Daily at 4 AM: storage usage sweep
	if m.storage != nil {
		_, err = m.cron.AddFunc("0 0 4 * * *", func() {
			m.logJobStart("storage_sweep")
			m.SweepStorage()
		})
		if err != nil {
			return err
		}
	}

	// 8. Reports: weekly Friday 18:00, monthly on the last day at 18:00
	if m.reports != nil {
		_, err = m.cron.AddFunc("0 0 18 * * FRI", func() {
			m.logJobStart("weekly_report")
			m.RunWeeklyReport()
		})
		if err != nil {
			return err
		}
		_, err = m.cron.AddFunc("0 0 18 * * *", func() {
			// Fires daily; only the last day of the month does work
			if time.Now().AddDate(0, 0, 1).Day() != 1 {
				return
			}
			m.logJobStart("monthly_report")
			m.RunMonthlyReport()
		})
		if err != nil {
			return err
		}
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.store.DB().Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	m.store.DB().Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": time.Now(),
			"message":      message,
		})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	m.store.DB().Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
