// Пакет sweeper периодически удаляет истекшие ссылки.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Target выполняет один проход очистки
type Target interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper запускает очистку с фиксированным интервалом.
// Очистка только освобождает место: истечение проверяется при каждом чтении.
type Sweeper struct {
	target   Target
	interval time.Duration
	logger   *slog.Logger
}

func New(target Target, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Run блокируется до отмены ctx. Ошибка прохода логируется, цикл продолжается.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("expiry sweeper disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce выполняет один проход и возвращает кол-во удаленных ссылок
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	start := time.Now()

	removed, err := s.target.SweepExpired(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("expiry sweep failed", slog.Any("error", err))
		}
		return 0
	}

	level := slog.LevelDebug
	if removed > 0 {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "expired links swept",
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)

	return removed
}
