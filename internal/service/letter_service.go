package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"skypost/internal/config"
	"skypost/internal/kafka"
	"skypost/internal/metrics"
	"skypost/internal/models"
	"skypost/internal/repository"
	"skypost/internal/transit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type LetterService struct {
	db         *pgxpool.Pool
	letterRepo *repository.LetterRepository
	flightRepo *repository.FlightRepository
	notifRepo  *repository.NotificationRepository
	outboxRepo *repository.OutboxRepository

	cfg        *config.Config
	kafkaTopic string
	logger     *slog.Logger
}

func NewLetterService(
	db *pgxpool.Pool,
	letterRepo *repository.LetterRepository,
	flightRepo *repository.FlightRepository,
	notifRepo *repository.NotificationRepository,
	outboxRepo *repository.OutboxRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *LetterService {
	kafkaTopic := cfg.KafkaTopic
	if strings.TrimSpace(kafkaTopic) == "" {
		kafkaTopic = "letter_events"
	}

	return &LetterService{
		db:         db,
		letterRepo: letterRepo,
		flightRepo: flightRepo,
		notifRepo:  notifRepo,
		outboxRepo: outboxRepo,
		cfg:        cfg,
		kafkaTopic: kafkaTopic,
		logger:     logger,
	}
}

// ComposeLetter creates the letter and its letter.scheduled outbox event in
// one transaction.
func (s *LetterService) ComposeLetter(ctx context.Context, req *models.LetterRequest) (string, error) {
	if err := validateComposeRequest(req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	letter := &models.Letter{
		ID:              uuid.NewString(),
		Body:            req.Body,
		SenderFlight:    req.SenderFlight,
		RecipientFlight: req.RecipientFlight,
		ScheduledSendAt: req.ScheduledSendAt.UTC(),
	}
	if err := s.letterRepo.CreateTx(ctx, tx, letter); err != nil {
		return "", fmt.Errorf("create letter tx: %w", err)
	}

	if err := s.enqueueEventTx(ctx, tx, kafka.EventLetterScheduled, letter, letter.CreatedAt); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	metrics.IncLettersComposed()
	return letter.ID, nil
}

// GetLetter returns the letter with status, progress and position derived
// from the clock at call time. The persisted row may lag one tracker tick
// behind; deriving here keeps reads accurate without waiting for the pass.
func (s *LetterService) GetLetter(ctx context.Context, id string) (*models.LetterResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: letter id is required", ErrInvalidInput)
	}

	letter, err := s.letterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := s.toLetterResponse(ctx, letter, time.Now().UTC())
	return &resp, nil
}

func (s *LetterService) ListLetters(ctx context.Context, flight, status string, limit, offset int) (*models.LetterListResponse, error) {
	if status != "" && !repository.IsValidLetterStatus(status) {
		return nil, fmt.Errorf("%w: status must be scheduled|in_transit|delivered|read", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	letters, total, err := s.letterRepo.List(ctx, flight, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}

	now := time.Now().UTC()
	items := make([]models.LetterResponse, 0, len(letters))
	for _, l := range letters {
		items = append(items, s.toLetterResponse(ctx, l, now))
	}

	return &models.LetterListResponse{
		Letters: items,
		Pagination: models.Pagination{
			Total: total,
			Limit: limit,
		},
	}, nil
}

// MarkLetterRead records the explicit user acknowledgment. Only delivered
// letters can be acknowledged; acknowledging an already-read letter is a
// no-op success so clients can retry freely.
func (s *LetterService) MarkLetterRead(ctx context.Context, id string) (*models.LetterResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: letter id is required", ErrInvalidInput)
	}

	letter, err := s.letterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch letter.Status {
	case models.LetterStatusRead:
		resp := s.toLetterResponse(ctx, letter, time.Now().UTC())
		return &resp, nil
	case models.LetterStatusDelivered:
		// fall through to the transition
	default:
		return nil, fmt.Errorf("%w: letter is %s, not delivered", ErrConflict, letter.Status)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.letterRepo.MarkReadTx(ctx, tx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race against another ack; treat as already read.
			return s.GetLetter(ctx, id)
		}
		return nil, fmt.Errorf("mark letter read tx: %w", err)
	}

	now := time.Now().UTC()
	letter.Status = models.LetterStatusRead
	letter.ReadAt = &now

	if err := s.enqueueEventTx(ctx, tx, kafka.EventLetterRead, letter, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	metrics.IncLettersRead()
	resp := s.toLetterResponse(ctx, letter, now)
	return &resp, nil
}

func (s *LetterService) DeleteLetter(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: letter id is required", ErrInvalidInput)
	}
	return s.letterRepo.Delete(ctx, id)
}

// ProcessLetterEvent handles one Kafka message. Delivered events become
// notification rows; everything else is acknowledged without action.
func (s *LetterService) ProcessLetterEvent(ctx context.Context, message []byte) error {
	var ev kafka.LetterEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return fmt.Errorf("unmarshal letter event: %w", err)
	}

	if ev.LetterID == "" || ev.Type == "" {
		return fmt.Errorf("%w: letter event missing id or type", ErrInvalidInput)
	}

	if ev.Type != kafka.EventLetterDelivered {
		return nil
	}

	created, err := s.notifRepo.Insert(ctx, &models.Notification{
		LetterID:        ev.LetterID,
		RecipientFlight: ev.RecipientFlight,
		Kind:            models.NotificationKindDelivered,
	})
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if created {
		metrics.IncNotificationsRecorded()
		s.logger.Info("delivery notification recorded",
			"letter_id", ev.LetterID,
			"recipient_flight", ev.RecipientFlight,
		)
	}
	return nil
}

// --- flights ---

func (s *LetterService) UpsertFlight(ctx context.Context, req *models.FlightRequest) error {
	if err := validateFlightRequest(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	f := &models.Flight{
		FlightNumber: req.FlightNumber,
		Origin:       req.Origin,
		Destination:  req.Destination,
		DepartureAt:  req.DepartureAt.UTC(),
		ArrivalAt:    req.ArrivalAt.UTC(),
		Route:        req.Route,
	}
	return s.flightRepo.Upsert(ctx, f)
}

func (s *LetterService) GetFlight(ctx context.Context, flightNumber string) (*models.FlightResponse, error) {
	if strings.TrimSpace(flightNumber) == "" {
		return nil, fmt.Errorf("%w: flight_number is required", ErrInvalidInput)
	}

	f, err := s.flightRepo.Get(ctx, flightNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	progress := transit.Progress(f.DepartureAt, f.ArrivalAt, now)

	return &models.FlightResponse{
		FlightNumber: f.FlightNumber,
		Origin:       f.Origin,
		Destination:  f.Destination,
		DepartureAt:  f.DepartureAt,
		ArrivalAt:    f.ArrivalAt,
		Route:        f.Route,
		Progress:     progress,
		Position:     transit.PositionAt(f.Route, progress),
	}, nil
}

func (s *LetterService) ListNotifications(ctx context.Context, flight string, limit int) ([]*models.Notification, error) {
	if strings.TrimSpace(flight) == "" {
		return nil, fmt.Errorf("%w: flight is required", ErrInvalidInput)
	}
	return s.notifRepo.ListByFlight(ctx, flight, limit)
}

// --- helpers ---

func (s *LetterService) enqueueEventTx(ctx context.Context, tx pgx.Tx, eventType string, l *models.Letter, occurredAt time.Time) error {
	payload, err := json.Marshal(kafka.NewLetterEvent(eventType, l, occurredAt))
	if err != nil {
		return fmt.Errorf("marshal letter event: %w", err)
	}

	ob := &models.OutboxMessage{
		Topic:   s.kafkaTopic,
		Payload: payload,
	}
	if err := s.outboxRepo.CreateMessage(ctx, tx, ob); err != nil {
		return fmt.Errorf("create outbox message tx: %w", err)
	}
	return nil
}

// toLetterResponse derives the presented status from the clock without
// persisting; the tracker owns the durable transition. A letter with no
// schedule is logged and presented exactly as stored.
func (s *LetterService) toLetterResponse(ctx context.Context, l *models.Letter, now time.Time) models.LetterResponse {
	derived := *l
	if derived.ScheduledSendAt.IsZero() && derived.Status == models.LetterStatusScheduled {
		s.logger.Warn("letter has no scheduled_send_at", "letter_id", derived.ID)
	} else {
		transit.Advance(&derived, now, s.cfg.Transit())
	}

	resp := models.LetterResponse{
		ID:              derived.ID,
		Body:            derived.Body,
		SenderFlight:    derived.SenderFlight,
		RecipientFlight: derived.RecipientFlight,
		Status:          derived.Status,
		Progress:        derived.Progress,
		CreatedAt:       derived.CreatedAt,
		ScheduledSendAt: derived.ScheduledSendAt,
		DeliveredAt:     derived.DeliveredAt,
		ReadAt:          derived.ReadAt,
	}

	// Position rides the sender flight's route. The flight tag is matched by
	// convention only; a missing flight just means no position on the map.
	if f, err := s.flightRepo.Get(ctx, derived.SenderFlight); err == nil {
		pos := transit.PositionAt(f.Route, derived.Progress)
		resp.Position = &pos
	}

	return resp
}

func validateComposeRequest(req *models.LetterRequest) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if strings.TrimSpace(req.Body) == "" {
		return errors.New("body is required")
	}
	if strings.TrimSpace(req.SenderFlight) == "" {
		return errors.New("sender_flight is required")
	}
	if strings.TrimSpace(req.RecipientFlight) == "" {
		return errors.New("recipient_flight is required")
	}
	if req.SenderFlight == req.RecipientFlight {
		return errors.New("sender_flight and recipient_flight must differ")
	}
	if req.ScheduledSendAt.IsZero() {
		return errors.New("scheduled_send_at is required")
	}
	return nil
}

func validateFlightRequest(req *models.FlightRequest) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if strings.TrimSpace(req.FlightNumber) == "" {
		return errors.New("flight_number is required")
	}
	if strings.TrimSpace(req.Origin) == "" {
		return errors.New("origin is required")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return errors.New("destination is required")
	}
	if req.DepartureAt.IsZero() {
		return errors.New("departure_at is required")
	}
	if req.ArrivalAt.IsZero() {
		return errors.New("arrival_at is required")
	}
	if !req.ArrivalAt.After(req.DepartureAt) {
		return errors.New("arrival_at must be after departure_at")
	}
	if len(req.Route) < 2 {
		return errors.New("route needs at least 2 waypoints")
	}
	return nil
}
