package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const (
	defaultRetentionDays = 30
	previewSampleSize    = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the retention service.
type ServiceParams struct {
	Repo   orders.Repository
	Tx     txRunner
	Logger *logger.Logger
	// Days is used when a caller passes zero.
	Days int
}

// OrderSummary is the sample row shown by a preview.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"orderNumber"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Preview reports what a purge with the same threshold would delete right now.
type Preview struct {
	Days   int            `json:"days"`
	Count  int64          `json:"count"`
	Cutoff time.Time      `json:"cutoff"`
	Sample []OrderSummary `json:"sample"`
}

// PurgeResult reports a completed purge.
type PurgeResult struct {
	Days    int       `json:"days"`
	Deleted int       `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
}

// Service deletes orders older than the retention horizon.
type Service struct {
	repo orders.Repository
	tx   txRunner
	logg *logger.Logger
	days int
	now  func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &Service{
		repo: params.Repo,
		tx:   params.Tx,
		logg: params.Logger,
		days: days,
		now:  time.Now,
	}, nil
}

// Days is the configured retention horizon.
func (s *Service) Days() int { return s.days }

// Preview counts the orders a purge would delete and returns the oldest few.
func (s *Service) Preview(ctx context.Context, days int) (*Preview, error) {
	days, cutoff, err := s.cutoff(days)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountCreatedBefore(ctx, cutoff)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count expired orders")
	}
	rows, err := s.repo.ListCreatedBefore(ctx, cutoff, previewSampleSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list expired orders")
	}

	sample := make([]OrderSummary, 0, len(rows))
	for _, o := range rows {
		sample = append(sample, OrderSummary{
			ID:          o.ID,
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			TotalAmount: o.TotalAmount,
			CreatedAt:   o.CreatedAt.UTC(),
		})
	}
	return &Preview{Days: days, Count: count, Cutoff: cutoff, Sample: sample}, nil
}

// Purge deletes every order created before the cutoff, with its items, in
// one transaction.
func (s *Service) Purge(ctx context.Context, days int) (*PurgeResult, error) {
	days, cutoff, err := s.cutoff(days)
	if err != nil {
		return nil, err
	}

	var deleted int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).DeleteCreatedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "cutoff", cutoff), "order purge failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "purge expired orders")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"days":    days,
		"deleted": deleted,
	}), "expired orders purged")
	return &PurgeResult{Days: days, Deleted: int(deleted), Cutoff: cutoff}, nil
}

// cutoff is computed per call so a long running worker always measures from now.
func (s *Service) cutoff(days int) (int, time.Time, error) {
	if days < 0 {
		return 0, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "days must be positive")
	}
	if days == 0 {
		days = s.days
	}
	return days, s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour), nil
}
