package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"skypost/internal/cache"
	"skypost/internal/metrics"

	"github.com/IBM/sarama"
)

// EventProcessor is the service-side hook the consumer feeds.
type EventProcessor interface {
	ProcessLetterEvent(ctx context.Context, message []byte) error
}

type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler sarama.ConsumerGroupHandler
	logger  *slog.Logger
}

func NewConsumer(
	brokers []string,
	groupID string,
	topic string,
	processor EventProcessor,
	c cache.Cache,
	logger *slog.Logger,
) (*Consumer, error) {
	cfg := sarama.NewConfig()

	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	// Commit by hand, only after successful processing.
	cfg.Consumer.Offsets.AutoCommit.Enable = false

	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRange(),
	}
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	h := &letterGroupHandler{
		processor: processor,
		logger:    logger,
		cache:     c,
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger:  logger,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", "error", err)
			metrics.IncKafkaError("consumer", "group")
		}
	}()

	for {
		err := c.group.Consume(ctx, []string{c.topic}, c.handler)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consume loop error", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type letterGroupHandler struct {
	processor EventProcessor
	logger    *slog.Logger
	cache     cache.Cache
}

func (h *letterGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *letterGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *letterGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for kafkaMsg := range claim.Messages() {
		lag := claim.HighWaterMarkOffset() - kafkaMsg.Offset - 1
		metrics.SetKafkaConsumerLag(kafkaMsg.Topic, kafkaMsg.Partition, lag)

		// retry until success or context cancellation
		if err := h.processWithRetry(session.Context(), kafkaMsg); err != nil {
			metrics.IncKafkaError("consumer", "process")
			// Not marked, not committed: the message will be read again.
			return err
		}
		metrics.IncKafkaProcessed()

		if h.cache != nil {
			_ = h.invalidateCache(session.Context(), kafkaMsg.Value)
		}

		// Only after success:
		session.MarkMessage(kafkaMsg, "")
		session.Commit()
	}
	return nil
}

func (h *letterGroupHandler) processWithRetry(ctx context.Context, m *sarama.ConsumerMessage) error {
	attempt := 0

	for {
		attempt++
		err := h.processor.ProcessLetterEvent(ctx, m.Value)
		if err == nil {
			return nil
		}

		backoff := retryBackoff(attempt)
		h.logger.Warn("process kafka message failed",
			"topic", m.Topic,
			"partition", m.Partition,
			"offset", m.Offset,
			"attempt", attempt,
			"error", err,
			"retry_in", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// linear backoff, 1..30s
func retryBackoff(attempt int) time.Duration {
	d := time.Duration(attempt) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func (h *letterGroupHandler) invalidateCache(ctx context.Context, payload []byte) error {
	var ev LetterEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	if ev.LetterID == "" {
		return nil
	}

	// 1) the letter itself
	_ = h.cache.Del(ctx, cache.LetterKey(ev.LetterID))

	// 2) every cached listing that mentions either flight (via the key sets)
	for _, flight := range []string{ev.SenderFlight, ev.RecipientFlight, ""} {
		setKey := cache.LetterListKeysSetKey(flight)
		keys, err := h.cache.SMembers(ctx, setKey)
		if err == nil && len(keys) > 0 {
			_ = h.cache.Del(ctx, keys...)
		}
		_ = h.cache.Del(ctx, setKey)
	}

	return nil
}
