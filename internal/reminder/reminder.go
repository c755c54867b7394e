// Package reminder runs the background loop that watches streaks and
// sends nudges and digests before the day closes.
package reminder

import (
	"context"
	"time"

	"github.com/lumenlab/lumenos/internal/coherence"
	"github.com/lumenlab/lumenos/internal/logger"
	"github.com/lumenlab/lumenos/internal/metrics"
	"github.com/lumenlab/lumenos/internal/models"
	"github.com/lumenlab/lumenos/internal/notify"
	"github.com/lumenlab/lumenos/internal/storage"
	"github.com/lumenlab/lumenos/internal/streak"
)

// Sender delivers reminder notifications.
type Sender interface {
	SendStreakRisk(kind string, current int) error
	SendDailyDigest(d notify.Digest) error
	SendError(loopErr error) error
	SendRecovery(failureCount int) error
}

// Config holds reminder loop behavior.
type Config struct {
	CheckInterval time.Duration
	AtRiskHour    int
	DigestHour    int
}

// Reminder checks streak exposure on a schedule. Each nudge and digest
// is sent at most once per calendar day.
type Reminder struct {
	store    storage.Store
	analyzer *streak.Analyzer
	sender   Sender
	metrics  *metrics.Metrics
	config   Config
	now      func() time.Time

	nudgedDay           map[models.EntryKind]streak.DayKey
	digestDay           streak.DayKey
	consecutiveFailures int
}

// New creates a reminder loop. A nil clock defaults to time.Now.
func New(store storage.Store, analyzer *streak.Analyzer, sender Sender, m *metrics.Metrics, cfg Config, now func() time.Time) *Reminder {
	if now == nil {
		now = time.Now
	}
	return &Reminder{
		store:     store,
		analyzer:  analyzer,
		sender:    sender,
		metrics:   m,
		config:    cfg,
		now:       now,
		nudgedDay: make(map[models.EntryKind]streak.DayKey),
		digestDay: -1,
	}
}

// Run blocks until ctx is cancelled, running one check cycle
// immediately and then one per tick.
func (r *Reminder) Run(ctx context.Context) {
	logger.Info("Starting reminder loop (interval: %v, at-risk hour: %d, digest hour: %d)",
		r.config.CheckInterval, r.config.AtRiskHour, r.config.DigestHour)

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	r.handleCycleResult(r.runCycle(ctx))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reminder loop stopped")
			return
		case <-ticker.C:
			r.handleCycleResult(r.runCycle(ctx))
		}
	}
}

// handleCycleResult tracks consecutive failures so the operator hears
// about an outage once at its start and once on recovery.
func (r *Reminder) handleCycleResult(err error) {
	if err != nil {
		r.consecutiveFailures++
		logger.Error("Reminder cycle failed: %v", err)
		if r.consecutiveFailures == 1 {
			if sendErr := r.sender.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return
	}
	if r.consecutiveFailures > 0 {
		if sendErr := r.sender.SendRecovery(r.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	r.consecutiveFailures = 0
}

func (r *Reminder) runCycle(ctx context.Context) error {
	now := r.now()
	today := r.analyzer.DayOf(now)
	hour := now.In(r.analyzer.Location()).Hour()

	if hour >= r.config.AtRiskHour {
		if err := r.checkAtRisk(ctx, today); err != nil {
			return err
		}
	}
	if hour >= r.config.DigestHour && r.digestDay != today {
		if err := r.sendDigest(ctx, today); err != nil {
			return err
		}
		r.digestDay = today
	}
	return nil
}

// checkAtRisk nudges once per day for every kind whose live streak
// would lapse at midnight.
func (r *Reminder) checkAtRisk(ctx context.Context, today streak.DayKey) error {
	for _, kind := range models.AllEntryKinds() {
		if r.nudgedDay[kind] == today {
			continue
		}
		times, err := r.store.EntryTimes(ctx, kind)
		if err != nil {
			return err
		}
		res, err := r.analyzer.Compute(times)
		if err != nil {
			return err
		}
		if res.Current == 0 || res.ActiveToday {
			continue
		}
		logger.Info("Streak at risk: kind=%s current=%d", kind, res.Current)
		if err := r.sender.SendStreakRisk(string(kind), res.Current); err != nil {
			logger.Warn("Failed to send streak nudge for %s: %v", kind, err)
			continue
		}
		r.metrics.RecordReminder("at_risk")
		r.nudgedDay[kind] = today
	}
	return nil
}

// sendDigest assembles and sends the end-of-day summary.
func (r *Reminder) sendDigest(ctx context.Context, today streak.DayKey) error {
	digest := notify.Digest{Date: today.String()}

	var practiceStreak int
	for _, kind := range models.AllEntryKinds() {
		times, err := r.store.EntryTimes(ctx, kind)
		if err != nil {
			return err
		}
		res, err := r.analyzer.Compute(times)
		if err != nil {
			return err
		}
		counts, err := r.analyzer.DailyCounts(times)
		if err != nil {
			return err
		}
		if kind == models.KindPractice {
			practiceStreak = res.Current
		}
		entriesToday := counts[today]
		if entriesToday == 0 && res.Current == 0 {
			continue
		}
		digest.Lines = append(digest.Lines, notify.DigestLine{
			Kind:    string(kind),
			Entries: entriesToday,
			Current: res.Current,
			Longest: res.Longest,
		})
	}

	checks, err := r.store.ListAuraChecks(ctx, 0)
	if err != nil {
		return err
	}
	for _, c := range checks {
		if r.analyzer.DayOf(c.CreatedAt) != today {
			continue
		}
		if c.Passed {
			digest.ChecksPassed++
		} else {
			digest.ChecksFailed++
		}
	}

	digest.EarnedLight = r.earnedLightToday(ctx, today, practiceStreak)

	if err := r.sender.SendDailyDigest(digest); err != nil {
		return err
	}
	r.metrics.RecordReminder("digest")
	logger.Info("Sent daily digest for %s (%d lines)", digest.Date, len(digest.Lines))
	return nil
}

// earnedLightToday credits today's completed practices at a neutral
// coherence of 1.0; live field scores only exist when the caller
// submits dimensions through the API.
func (r *Reminder) earnedLightToday(ctx context.Context, today streak.DayKey, practiceStreak int) float64 {
	times, err := r.store.EntryTimes(ctx, models.KindPractice)
	if err != nil {
		logger.Warn("Failed to load practice times for digest: %v", err)
		return 0
	}
	counts, err := r.analyzer.DailyCounts(times)
	if err != nil {
		logger.Warn("Failed to bucket practice times for digest: %v", err)
		return 0
	}
	light, err := coherence.EarnedLight(counts[today], practiceStreak, 1.0)
	if err != nil {
		logger.Warn("Failed to compute earned light for digest: %v", err)
		return 0
	}
	return light
}
