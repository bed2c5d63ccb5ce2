package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/events"
	"github.com/yourorg/businesshub/internal/observability/metrics"
	"github.com/yourorg/businesshub/pkg/cache"
)

// PendingMonitor periodically sweeps the membership collection: it keeps the
// pending join-request gauge current and emits reminder events for requests
// that have sat unapproved past the reminder age. Reminders are
// notifications only; nothing in the approval workflow depends on them.
type PendingMonitor struct {
	membershipRepo domain.MembershipRepository
	publisher      events.Publisher
	interval       time.Duration
	reminderAge    time.Duration
	reminded       *cache.Cache
	logger         *slog.Logger
}

func NewPendingMonitor(
	membershipRepo domain.MembershipRepository,
	publisher events.Publisher,
	interval time.Duration,
	reminderAge time.Duration,
	logger *slog.Logger,
) *PendingMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PendingMonitor{
		membershipRepo: membershipRepo,
		publisher:      publisher,
		interval:       interval,
		reminderAge:    reminderAge,
		reminded:       cache.New(),
		logger:         logger,
	}
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (m *PendingMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("pending monitor started",
		slog.Duration("interval", m.interval),
		slog.Duration("reminder_age", m.reminderAge),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("pending monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one monitoring pass.
func (m *PendingMonitor) Sweep(ctx context.Context) {
	counts, err := m.membershipRepo.CountPendingByBusiness(ctx)
	if err != nil {
		m.logger.Error("pending sweep count failed", slog.String("error", err.Error()))
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	metrics.SetPendingJoinRequests(total)

	cutoff := time.Now().Add(-m.reminderAge)
	for businessID := range counts {
		pending, err := m.membershipRepo.ListPendingByBusiness(ctx, businessID)
		if err != nil {
			m.logger.Error("pending sweep list failed",
				slog.String("business_id", businessID.Hex()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, membership := range pending {
			if membership.JoinedAt.After(cutoff) {
				continue
			}
			m.remind(ctx, membership)
		}
	}
}

// remind emits one reminder per membership per reminder age. The dedupe
// cache entry expires with the reminder age, so a request that stays
// pending gets reminded again next cycle.
func (m *PendingMonitor) remind(ctx context.Context, membership *domain.Membership) {
	key := "reminded:" + membership.ID.Hex()
	if _, seen := m.reminded.Get(key); seen {
		return
	}

	event := events.NewEvent(events.TypeJoinReminder, membership.BusinessID.Hex())
	event.UserID = membership.UserID.Hex()
	event.Role = string(membership.Role)
	if err := m.publisher.Publish(ctx, event); err != nil {
		metrics.ObserveEventPublished(event.Type, "error")
		m.logger.Warn("failed to publish reminder",
			slog.String("membership_id", membership.ID.Hex()),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.ObserveEventPublished(event.Type, "success")
	m.reminded.Set(key, true, m.reminderAge)
}
