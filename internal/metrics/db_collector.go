package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StartDBCollectors keeps the letter and outbox status gauges fresh with a
// periodic GROUP BY over both tables.
func StartDBCollectors(ctx context.Context, db *pgxpool.Pool, interval time.Duration, logger *slog.Logger) {
	if db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		updateDBGauges(ctx, db, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				updateDBGauges(ctx, db, logger)
			}
		}
	}()
}

func updateDBGauges(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) {
	// letter counts by status
	{
		rows, err := db.Query(ctx, `SELECT status, COUNT(*) FROM letters GROUP BY status`)
		if err != nil {
			logger.Warn("metrics db query letters", "error", err)
		} else {
			defer rows.Close()
			for rows.Next() {
				var status string
				var cnt int64
				if err := rows.Scan(&status, &cnt); err != nil {
					logger.Warn("metrics db scan letters", "error", err)
					continue
				}
				SetLetterStatusCount(status, cnt)
			}
		}
	}

	// outbox counts by status (+ pending)
	{
		rows, err := db.Query(ctx, `SELECT status, COUNT(*) FROM outbox_messages GROUP BY status`)
		if err != nil {
			// table may not exist yet; skip quietly
			return
		}
		defer rows.Close()

		var pending int64
		for rows.Next() {
			var status string
			var cnt int64
			if err := rows.Scan(&status, &cnt); err != nil {
				logger.Warn("metrics db scan outbox", "error", err)
				continue
			}
			SetOutboxStatusCount(status, cnt)
			if status == "pending" {
				pending = cnt
			}
		}
		SetOutboxPendingCount(pending)
	}
}
