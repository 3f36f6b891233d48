package repository

import (
	"context"
	"fmt"

	"skypost/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert records a notification. Kafka redelivers, so the unique
// (letter_id, kind) pair plus DO NOTHING makes the write idempotent; the
// bool reports whether this call actually created the row.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) (bool, error) {
	if n == nil {
		return false, fmt.Errorf("notification is nil")
	}
	if n.LetterID == "" {
		return false, fmt.Errorf("letter_id is empty")
	}
	if n.Kind == "" {
		return false, fmt.Errorf("kind is empty")
	}

	q := r.sb.
		Insert("notifications").
		Columns("letter_id", "recipient_flight", "kind").
		Values(n.LetterID, n.RecipientFlight, n.Kind).
		Suffix("ON CONFLICT (letter_id, kind) DO NOTHING")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert notification sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *NotificationRepository) ListByFlight(ctx context.Context, flight string, limit int) ([]*models.Notification, error) {
	if flight == "" {
		return nil, fmt.Errorf("flight is empty")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := r.sb.
		Select("id", "letter_id", "recipient_flight", "kind", "created_at").
		From("notifications").
		Where(sq.Eq{"recipient_flight": flight}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select notifications sql: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Notification, 0, limit)
	for rows.Next() {
		var n models.Notification
		var id int64
		if err := rows.Scan(&id, &n.LetterID, &n.RecipientFlight, &n.Kind, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		n.ID = int(id)
		res = append(res, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return res, nil
}
