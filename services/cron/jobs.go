package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/djsoulspotti-ops/skajla/database"
	"github.com/djsoulspotti-ops/skajla/utils/metrics"
)

const jobTimeout = 5 * time.Minute

// maxDBPingFailures is how many consecutive ping failures force a pool
// recreation.
const maxDBPingFailures = 3

func jobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), jobTimeout)
}

// PingDatabase keeps the connection pool warm. Three failures in a row mean
// the pool is beyond salvage and gets rebuilt.
func (m *CronManager) PingDatabase() {
	start := time.Now()
	err := m.store.HealthCheck()
	metrics.ObserveDBPing(time.Since(start))

	if err == nil {
		if m.dbFailures > 0 {
			log.Printf("[CRON] DB ping recovered after %d failures", m.dbFailures)
		}
		m.dbFailures = 0
		m.logJobComplete("db_keepalive_ping", "ok")
		return
	}

	m.dbFailures++
	log.Printf("[CRON] DB ping failed (%d/%d): %v", m.dbFailures, maxDBPingFailures, err)

	if m.dbFailures >= maxDBPingFailures {
		if rerr := m.store.Recreate(); rerr != nil {
			m.logJobError("db_keepalive_ping", fmt.Errorf("pool recreation failed: %w", rerr))
			return
		}
		m.dbFailures = 0
		m.logJobComplete("db_keepalive_ping", "connection pool recreated")
		return
	}
	m.logJobError("db_keepalive_ping", err)
}

// ReconcilePresence drops users whose TTL key expired from the online sets.
// Runs every minute and is deliberately quiet: a minute-level job writing
// CronJobLog rows would flood the table.
func (m *CronManager) ReconcilePresence() {
	ctx, cancel := jobContext()
	defer cancel()

	removed, err := m.presence.Reconcile(ctx)
	if err != nil {
		log.Printf("[CRON] presence reconcile failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[CRON] presence reconcile: %d stale entries removed", removed)
	}
}

// SweepExpiredGroups deletes instant groups past their TTL.
func (m *CronManager) SweepExpiredGroups() {
	ctx, cancel := jobContext()
	defer cancel()

	deleted, err := m.groups.SweepExpired(ctx)
	if err != nil {
		m.logJobError("sweep_expired_groups", err)
		m.retryAfter(5*time.Minute, "sweep_expired_groups", m.SweepExpiredGroups)
		return
	}
	m.logJobComplete("sweep_expired_groups", fmt.Sprintf("deleted %d expired groups", deleted))
}

// SweepInactiveGroups deletes instant groups with no message for a day.
func (m *CronManager) SweepInactiveGroups() {
	ctx, cancel := jobContext()
	defer cancel()

	deleted, err := m.groups.SweepInactive(ctx)
	if err != nil {
		m.logJobError("sweep_inactive_groups", err)
		m.retryAfter(5*time.Minute, "sweep_inactive_groups", m.SweepInactiveGroups)
		return
	}
	m.logJobComplete("sweep_inactive_groups", fmt.Sprintf("deleted %d inactive groups", deleted))
}

// retryAfter schedules a one-shot retry of a failed sweep.
func (m *CronManager) retryAfter(d time.Duration, jobName string, fn func()) {
	log.Printf("[CRON] %s will retry in %s", jobName, d)
	time.AfterFunc(d, func() {
		m.logJobStart(jobName)
		fn()
	})
}

// RotateChallenges opens the next daily/weekly challenge windows once the
// current ones lapse. The seeder is idempotent per cadence, so Monday runs
// open both and other days only the daily.
func (m *CronManager) RotateChallenges() {
	if err := database.NewSeeder(m.store.DB()).SeedChallenges(); err != nil {
		m.logJobError("rotate_challenges", err)
		return
	}
	m.logJobComplete("rotate_challenges", "challenge windows current")
}

// CleanupExpiredSessions drops expired blacklist rows and stale pending quiz
// keys.
func (m *CronManager) CleanupExpiredSessions() {
	ctx, cancel := jobContext()
	defer cancel()

	rows, err := m.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		m.logJobError("cleanup_expired_sessions", err)
		return
	}

	// Pending quiz keys carry their own TTL; this pass only mops up after a
	// redis restart with persistence disabled mid-TTL.
	cleaned := 0
	if m.hot != nil {
		if keys, kerr := m.hot.Keys(ctx, "quiz:pending:*"); kerr == nil {
			for _, key := range keys {
				ttl, terr := m.hot.TTL(ctx, key)
				if terr == nil && ttl < 0 {
					_ = m.hot.Delete(ctx, key)
					cleaned++
				}
			}
		}
	}

	m.logJobComplete("cleanup_expired_sessions",
		fmt.Sprintf("removed %d blacklist rows, %d stale quiz keys", rows, cleaned))
}

// storageThresholdPercent triggers the external cleanup routine.
const storageThresholdPercent = 85.0

// SweepStorage asks the collaborator for usage and triggers its cleanup when
// over the threshold.
func (m *CronManager) SweepStorage() {
	usage, err := m.storage.UsagePercent()
	if err != nil {
		m.logJobError("storage_sweep", err)
		return
	}
	if usage < storageThresholdPercent {
		m.logJobComplete("storage_sweep", fmt.Sprintf("usage %.1f%%, below threshold", usage))
		return
	}

	if err := m.storage.Cleanup(); err != nil {
		m.logJobError("storage_sweep", err)
		return
	}
	m.logJobComplete("storage_sweep", fmt.Sprintf("cleanup triggered at %.1f%% usage", usage))
}

// RunWeeklyReport invokes the report collaborator. Failures wait for the
// next window.
func (m *CronManager) RunWeeklyReport() {
	if err := m.reports.GenerateWeekly(); err != nil {
		m.logJobError("weekly_report", err)
		return
	}
	m.logJobComplete("weekly_report", "generated")
}

// RunMonthlyReport invokes the monthly report collaborator.
func (m *CronManager) RunMonthlyReport() {
	if err := m.reports.GenerateMonthly(); err != nil {
		m.logJobError("monthly_report", err)
		return
	}
	m.logJobComplete("monthly_report", "generated")
}
