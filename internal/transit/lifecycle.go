package transit

import (
	"time"

	"skypost/internal/models"
)

// Advance applies the letter lifecycle rules to l at the given wall-clock
// instant and reports whether the letter changed. The pass is idempotent:
// delivered and read letters are left untouched, so re-running it can never
// regress a status or rewrite a timestamp.
//
//	scheduled  -> in_transit  when now >= scheduled_send_at
//	in_transit -> delivered   when now - scheduled_send_at >= transitDuration
//	delivered  -> read        only via explicit acknowledgment, not here
//
// A zero scheduled_send_at means the timestamp never made it into storage;
// the letter stays scheduled (callers log the anomaly) rather than moving on
// garbage input.
func Advance(l *models.Letter, now time.Time, transitDuration time.Duration) bool {
	switch l.Status {
	case models.LetterStatusDelivered, models.LetterStatusRead:
		return false
	}

	if l.ScheduledSendAt.IsZero() {
		return false
	}

	if now.Before(l.ScheduledSendAt) {
		return false
	}

	deliveryAt := l.ScheduledSendAt.Add(transitDuration)

	if transitDuration > 0 && now.Before(deliveryAt) {
		progress := Progress(l.ScheduledSendAt, deliveryAt, now)
		changed := l.Status != models.LetterStatusInTransit || l.Progress != progress
		l.Status = models.LetterStatusInTransit
		l.Progress = progress
		return changed
	}

	// Delivery time is derived from the schedule, not from the tick that
	// happened to observe it, so repeated passes agree on the timestamp.
	l.Status = models.LetterStatusDelivered
	l.Progress = 1
	if l.DeliveredAt == nil {
		l.DeliveredAt = &deliveryAt
	}
	return true
}

// MarkRead records the explicit user acknowledgment. It only fires from
// delivered; anything earlier is a conflict and read is terminal.
func MarkRead(l *models.Letter, now time.Time) bool {
	if l.Status != models.LetterStatusDelivered {
		return false
	}
	l.Status = models.LetterStatusRead
	t := now
	l.ReadAt = &t
	return true
}
