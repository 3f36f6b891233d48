package repository

import (
	"context"
	"errors"
	"fmt"

	"skypost/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var allowedLetterStatuses = map[string]struct{}{
	models.LetterStatusScheduled: {},
	models.LetterStatusInTransit: {},
	models.LetterStatusDelivered: {},
	models.LetterStatusRead:      {},
}

func IsValidLetterStatus(s string) bool {
	_, ok := allowedLetterStatuses[s]
	return ok
}

type LetterRepository struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewLetterRepository(db *pgxpool.Pool) *LetterRepository {
	return &LetterRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateTx inserts a freshly composed letter with status "scheduled" inside
// the caller's transaction (compose is letter + outbox event atomically).
func (r *LetterRepository) CreateTx(ctx context.Context, tx pgx.Tx, l *models.Letter) error {
	if l == nil {
		return fmt.Errorf("letter is nil")
	}
	if l.ID == "" {
		return fmt.Errorf("letter id is empty")
	}

	l.Status = models.LetterStatusScheduled
	l.Progress = 0

	q := r.sb.
		Insert("letters").
		Columns("id", "body", "sender_flight", "recipient_flight", "status", "progress", "scheduled_send_at").
		Values(l.ID, l.Body, l.SenderFlight, l.RecipientFlight, l.Status, l.Progress, l.ScheduledSendAt).
		Suffix("RETURNING created_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert letter sql: %w", err)
	}

	if err := tx.QueryRow(ctx, sqlStr, args...).Scan(&l.CreatedAt); err != nil {
		return fmt.Errorf("insert letter: %w", err)
	}

	l.DeliveredAt = nil
	l.ReadAt = nil
	return nil
}

func (r *LetterRepository) GetByID(ctx context.Context, id string) (*models.Letter, error) {
	if id == "" {
		return nil, fmt.Errorf("letter id is empty")
	}

	q := r.sb.
		Select("id", "body", "sender_flight", "recipient_flight", "status",
			"progress", "created_at", "scheduled_send_at", "delivered_at", "read_at").
		From("letters").
		Where(sq.Eq{"id": id}).
		Limit(1)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get letter sql: %w", err)
	}

	row := r.db.QueryRow(ctx, sqlStr, args...)
	l, err := scanLetter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get letter: %w", err)
	}
	return l, nil
}

// List returns letters where the flight appears on either end, newest first,
// with the total for the pagination envelope.
func (r *LetterRepository) List(ctx context.Context, flight, status string, limit, offset int) ([]*models.Letter, int, error) {
	filters := sq.And{}
	if flight != "" {
		filters = append(filters, sq.Or{
			sq.Eq{"sender_flight": flight},
			sq.Eq{"recipient_flight": flight},
		})
	}
	if status != "" {
		if !IsValidLetterStatus(status) {
			return nil, 0, fmt.Errorf("invalid status: %s", status)
		}
		filters = append(filters, sq.Eq{"status": status})
	}

	countQ := r.sb.Select("COUNT(*)").From("letters")
	dataQ := r.sb.
		Select("id", "body", "sender_flight", "recipient_flight", "status",
			"progress", "created_at", "scheduled_send_at", "delivered_at", "read_at").
		From("letters").
		OrderBy("created_at DESC", "id DESC")

	if len(filters) > 0 {
		countQ = countQ.Where(filters)
		dataQ = dataQ.Where(filters)
	}
	if limit > 0 {
		dataQ = dataQ.Limit(uint64(limit))
	}
	if offset > 0 {
		dataQ = dataQ.Offset(uint64(offset))
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count letters sql: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count letters: %w", err)
	}

	dataSQL, dataArgs, err := dataQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select letters sql: %w", err)
	}

	rows, err := r.db.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query letters: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Letter, 0)
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan letter row: %w", err)
		}
		res = append(res, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate letter rows: %w", err)
	}

	return res, int(total), nil
}

// ListActive returns the letters the transit tracker has to look at: anything
// in transit, plus scheduled letters whose send time has come. Scheduled
// letters with a missing send timestamp are excluded; they stay scheduled
// until someone fixes the row.
func (r *LetterRepository) ListActive(ctx context.Context, limit int) ([]*models.Letter, error) {
	if limit <= 0 {
		limit = 500
	}

	q := r.sb.
		Select("id", "body", "sender_flight", "recipient_flight", "status",
			"progress", "created_at", "scheduled_send_at", "delivered_at", "read_at").
		From("letters").
		Where(sq.Or{
			sq.Eq{"status": models.LetterStatusInTransit},
			sq.And{
				sq.Eq{"status": models.LetterStatusScheduled},
				sq.Expr("scheduled_send_at <= NOW()"),
			},
		}).
		OrderBy("scheduled_send_at ASC", "id ASC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active letters sql: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query active letters: %w", err)
	}
	defer rows.Close()

	res := make([]*models.Letter, 0, limit)
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active letter row: %w", err)
		}
		res = append(res, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active letter rows: %w", err)
	}

	return res, nil
}

// UpdateTransitTx writes back the fields the recompute pass may change.
func (r *LetterRepository) UpdateTransitTx(ctx context.Context, tx pgx.Tx, l *models.Letter) error {
	if l == nil {
		return fmt.Errorf("letter is nil")
	}
	if !IsValidLetterStatus(l.Status) {
		return fmt.Errorf("invalid status: %s", l.Status)
	}

	q := r.sb.
		Update("letters").
		Set("status", l.Status).
		Set("progress", l.Progress).
		Set("delivered_at", l.DeliveredAt).
		Where(sq.Eq{"id": l.ID})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update letter transit sql: %w", err)
	}

	tag, err := tx.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update letter transit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReadTx records the read acknowledgment. The status guard lives in the
// WHERE clause so a concurrent ack cannot double-fire the transition.
func (r *LetterRepository) MarkReadTx(ctx context.Context, tx pgx.Tx, id string) error {
	if id == "" {
		return fmt.Errorf("letter id is empty")
	}

	q := r.sb.
		Update("letters").
		Set("status", models.LetterStatusRead).
		Set("read_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":     id,
			"status": models.LetterStatusDelivered,
		})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build mark letter read sql: %w", err)
	}

	tag, err := tx.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("mark letter read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LetterRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("letter id is empty")
	}

	q := r.sb.Delete("letters").Where(sq.Eq{"id": id})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete letter sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLetter(row pgx.Row) (*models.Letter, error) {
	var (
		l         models.Letter
		delivered pgtype.Timestamptz
		read      pgtype.Timestamptz
	)
	if err := row.Scan(
		&l.ID,
		&l.Body,
		&l.SenderFlight,
		&l.RecipientFlight,
		&l.Status,
		&l.Progress,
		&l.CreatedAt,
		&l.ScheduledSendAt,
		&delivered,
		&read,
	); err != nil {
		return nil, err
	}

	if delivered.Valid {
		t := delivered.Time
		l.DeliveredAt = &t
	}
	if read.Valid {
		t := read.Time
		l.ReadAt = &t
	}
	return &l, nil
}
