package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/irrigationcal/internal/domain"
	"github.com/punchamoorthee/irrigationcal/internal/models"
)

var ErrInvalidSchedule = errors.New("invalid schedule timestamps")

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_upstream_requests_total",
		Help: "Quickview fetches, labeled by outcome",
	}, []string{"outcome"})

	upstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "irrigation_upstream_request_duration_seconds",
		Help:    "Latency of quickview fetches",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

// QuickviewFetcher retrieves the raw schedule snapshot for one account.
type QuickviewFetcher interface {
	FetchQuickview(ctx context.Context, accountID string) (models.Snapshot, error)
}

type ScheduleService struct {
	fetcher  QuickviewFetcher
	tzOffset string
	logger   *slog.Logger
}

func NewScheduleService(fetcher QuickviewFetcher, tzOffset string, logger *slog.Logger) *ScheduleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleService{fetcher: fetcher, tzOffset: tzOffset, logger: logger}
}

// FetchAll fetches every account concurrently and waits for all of them to
// settle. Results are in the same order as accounts; a failure is recorded on
// its own result and never aborts the others.
func (s *ScheduleService) FetchAll(ctx context.Context, accounts []domain.Account) []models.FetchResult {
	results := make([]models.FetchResult, len(accounts))

	var wg sync.WaitGroup
	wg.Add(len(accounts))
	for i, acct := range accounts {
		i, acct := i, acct
		go func() {
			defer wg.Done()
			results[i] = s.fetchOne(ctx, acct)
		}()
	}
	wg.Wait()

	return results
}

func (s *ScheduleService) fetchOne(ctx context.Context, acct domain.Account) models.FetchResult {
	timer := prometheus.NewTimer(upstreamDuration)
	snap, err := s.fetcher.FetchQuickview(ctx, acct.ID)
	timer.ObserveDuration()
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Error("fetch error for account", "account", acct.ID, "error", err)
		return models.Failed(acct, err)
	}

	sched, err := ParseSchedule(snap, s.tzOffset)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("invalid").Inc()
		s.logger.Error("unusable schedule for account", "account", acct.ID, "error", err)
		return models.Failed(acct, err)
	}

	upstreamRequestsTotal.WithLabelValues("ok").Inc()
	return models.Succeeded(acct, sched)
}

// ParseSchedule appends offset verbatim to the snapshot's local on/off
// timestamps and parses the result as RFC 3339.
func ParseSchedule(snap models.Snapshot, offset string) (models.Schedule, error) {
	start, err := time.Parse(time.RFC3339, snap.OnDateTime+offset)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("%w: onDateTime %q: %v", ErrInvalidSchedule, snap.OnDateTime, err)
	}
	end, err := time.Parse(time.RFC3339, snap.OffDateTime+offset)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("%w: offDateTime %q: %v", ErrInvalidSchedule, snap.OffDateTime, err)
	}
	return models.Schedule{Snapshot: snap, Start: start, End: end}, nil
}
