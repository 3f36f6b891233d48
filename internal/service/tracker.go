package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"skypost/internal/cache"
	"skypost/internal/config"
	"skypost/internal/kafka"
	"skypost/internal/metrics"
	"skypost/internal/models"
	"skypost/internal/repository"
	"skypost/internal/transit"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TransitTracker is the periodic recompute pass: every tick it loads the
// active letters and applies the lifecycle state machine. Status changes are
// written together with their outbox event in one transaction; progress-only
// changes are written without an event so the outbox is not flooded once per
// tick per letter.
type TransitTracker struct {
	db         *pgxpool.Pool
	letterRepo *repository.LetterRepository
	outboxRepo *repository.OutboxRepository
	cache      cache.Cache

	cfg        *config.Config
	kafkaTopic string
	batchSize  int
	logger     *slog.Logger
}

func NewTransitTracker(
	db *pgxpool.Pool,
	letterRepo *repository.LetterRepository,
	outboxRepo *repository.OutboxRepository,
	c cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *TransitTracker {
	return &TransitTracker{
		db:         db,
		letterRepo: letterRepo,
		outboxRepo: outboxRepo,
		cache:      c,
		cfg:        cfg,
		kafkaTopic: cfg.KafkaTopic,
		batchSize:  500,
		logger:     logger,
	}
}

// Start runs the tracker loop until the context is cancelled. The tick
// interval follows config reloads.
func (t *TransitTracker) Start(ctx context.Context) {
	go func() {
		t.logger.Info("transit tracker started", "interval", t.cfg.Tick())
		defer t.logger.Info("transit tracker stopped")

		interval := t.cfg.Tick()
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		t.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if cur := t.cfg.Tick(); cur > 0 && cur != interval {
					interval = cur
					ticker.Reset(interval)
				}
				t.runOnce(ctx)
			}
		}
	}()
}

func (t *TransitTracker) runOnce(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.ObserveTrackerPass(time.Since(start)) }()

	letters, err := t.letterRepo.ListActive(ctx, t.batchSize)
	if err != nil {
		t.logger.Error("tracker list active letters failed", "error", err)
		return
	}

	now := time.Now().UTC()
	transitDur := t.cfg.Transit()

	for _, l := range letters {
		prevStatus := l.Status

		if !transit.Advance(l, now, transitDur) {
			continue
		}

		if err := t.persist(ctx, l, prevStatus, now); err != nil {
			t.logger.Error("tracker persist letter failed",
				"letter_id", l.ID,
				"status", l.Status,
				"error", err,
			)
			continue
		}

		metrics.IncTrackerLettersAdvanced()
		if prevStatus != models.LetterStatusDelivered && l.Status == models.LetterStatusDelivered {
			metrics.IncLettersDelivered()
			t.logger.Info("letter delivered",
				"letter_id", l.ID,
				"recipient_flight", l.RecipientFlight,
				"delivered_at", l.DeliveredAt,
			)
		}

		t.invalidate(ctx, l)
	}
}

func (t *TransitTracker) persist(ctx context.Context, l *models.Letter, prevStatus string, now time.Time) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := t.letterRepo.UpdateTransitTx(ctx, tx, l); err != nil {
		return fmt.Errorf("update letter transit tx: %w", err)
	}

	if eventType := transitionEvent(prevStatus, l.Status); eventType != "" {
		payload, err := json.Marshal(kafka.NewLetterEvent(eventType, l, now))
		if err != nil {
			return fmt.Errorf("marshal letter event: %w", err)
		}
		ob := &models.OutboxMessage{
			Topic:   t.kafkaTopic,
			Payload: payload,
		}
		if err := t.outboxRepo.CreateMessage(ctx, tx, ob); err != nil {
			return fmt.Errorf("create outbox message tx: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// transitionEvent maps a status change to its event type; progress-only
// updates return "".
func transitionEvent(prev, next string) string {
	if prev == next {
		return ""
	}
	switch next {
	case models.LetterStatusInTransit:
		return kafka.EventLetterInTransit
	case models.LetterStatusDelivered:
		return kafka.EventLetterDelivered
	default:
		return ""
	}
}

func (t *TransitTracker) invalidate(ctx context.Context, l *models.Letter) {
	if t.cache == nil {
		return
	}

	_ = t.cache.Del(ctx, cache.LetterKey(l.ID))

	for _, flight := range []string{l.SenderFlight, l.RecipientFlight, ""} {
		setKey := cache.LetterListKeysSetKey(flight)
		keys, err := t.cache.SMembers(ctx, setKey)
		if err == nil && len(keys) > 0 {
			_ = t.cache.Del(ctx, keys...)
		}
		_ = t.cache.Del(ctx, setKey)
	}
}
