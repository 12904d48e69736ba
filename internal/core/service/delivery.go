package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/niksmo/keyshop/pkg/retry"
)

type DeliveryWorkerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	RetryAttempts int
	RetryDelay    time.Duration

	// MaxAttempts marks a delivery failed once reached. Zero retries
	// forever.
	MaxAttempts int

	// ClaimTimeout is how long a claimed delivery stays with its sender
	// before the worker may take it over.
	ClaimTimeout time.Duration
}

// A DeliveryWorker resends deliveries left pending by checkout.
type DeliveryWorker struct {
	deliveries port.DeliveryStorage
	notifier   port.Notifier
	cfg        DeliveryWorkerConfig
}

func NewDeliveryWorker(
	deliveries port.DeliveryStorage,
	notifier port.Notifier,
	cfg DeliveryWorkerConfig,
) DeliveryWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = 5 * time.Minute
	}
	return DeliveryWorker{deliveries, notifier, cfg}
}

// Run polls until ctx is done.
func (w DeliveryWorker) Run(ctx context.Context, wg *sync.WaitGroup) {
	const op = "DeliveryWorker.Run"
	log := slog.With("op", op)

	defer wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	log.Info("delivery worker is running", "interval", w.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("delivery worker is stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil {
				log.Error("failed to process pending deliveries", "err", err)
			}
		}
	}
}

// ProcessPending sends one batch and returns how many were delivered.
func (w DeliveryWorker) ProcessPending(ctx context.Context) (int, error) {
	const op = "DeliveryWorker.ProcessPending"
	log := slog.With("op", op)

	staleBefore := time.Now().Add(-w.cfg.ClaimTimeout)
	ds, err := w.deliveries.PendingDeliveries(ctx, w.cfg.BatchSize, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		sent int
		errs []error
	)
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return sent, fmt.Errorf("%s: %w", op, err)
		}

		claimed, err := w.deliveries.ClaimDelivery(ctx, d.ID, staleBefore)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !claimed {
			log.Debug("delivery claimed elsewhere", "deliveryID", d.ID)
			continue
		}

		if err := w.send(ctx, d); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}

	if len(ds) != 0 {
		log.Info("pending deliveries processed",
			"total", len(ds), "sent", sent,
		)
	}

	if err := errors.Join(errs...); err != nil {
		return sent, fmt.Errorf("%s: %w", op, err)
	}
	return sent, nil
}

func (w DeliveryWorker) send(ctx context.Context, d domain.Delivery) error {
	const op = "DeliveryWorker.send"
	log := slog.With("op", op, "deliveryID", d.ID, "purchaseID", d.PurchaseID)

	retryCfg := retry.RetryConfig{
		MaxAttempts: w.cfg.RetryAttempts,
		Backoff:     retry.ExponentialBackoff(w.cfg.RetryDelay),
	}

	err := retry.Do(ctx, retryCfg, func() error {
		return w.notifier.Notify(ctx, d.Notification())
	})
	if err == nil {
		if err := w.deliveries.MarkDeliverySent(ctx, d.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("delivered")
		return nil
	}

	final := w.cfg.MaxAttempts > 0 && d.Attempts+1 >= w.cfg.MaxAttempts
	if markErr := w.deliveries.MarkDeliveryFailed(
		ctx, d.ID, err.Error(), final,
	); markErr != nil {
		return fmt.Errorf("%s: %w", op, errors.Join(err, markErr))
	}

	if final {
		log.Error("delivery given up", "attempts", d.Attempts+1, "err", err)
	}

	return fmt.Errorf("%s: %w", op, &domain.NotificationDeliveryError{
		PurchaseID: d.PurchaseID, Err: err,
	})
}
