package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Leganyst/reservation-core/internal/repository"
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay периодически забирает неопубликованные события из outbox_events,
// отдаёт их Publisher и помечает опубликованными. Доставка at-least-once.
type Relay struct {
	repo      repository.EventRepository
	publisher Publisher
	log       *zap.Logger

	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewRelay(repo repository.EventRepository, publisher Publisher, log *zap.Logger, cfg Config) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		repo:      repo,
		publisher: publisher,
		log:       log,
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run блокируется до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch", r.batchSize))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			// выгребаем всё накопленное, не дожидаясь следующего тика
			for {
				n, err := r.RunOnce(ctx)
				if err != nil {
					r.log.Error("outbox publish failed", zap.Error(err))
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RunOnce публикует одну пачку и возвращает число отправленных событий.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.repo.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, events); err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if err := r.repo.MarkPublished(ctx, ids, r.now()); err != nil {
		return 0, err
	}
	r.log.Debug("outbox batch published", zap.Int("count", len(events)))
	return len(events), nil
}
