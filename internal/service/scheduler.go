package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/internal/store"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

const sweepPageSize = 200

var ticketStatuses = []model.TicketStatus{
	model.TicketOpen,
	model.TicketInProgress,
	model.TicketResolved,
	model.TicketClosed,
	model.TicketEscalated,
}

var slaStatuses = []model.SLAStatus{
	model.SLAOnTime,
	model.SLASoon,
	model.SLAUrgent,
	model.SLAOverdue,
}

// SchedulerService periodically sweeps tickets, refreshing the status and SLA
// gauges and publishing a breach event the first time a ticket goes overdue.
type SchedulerService struct {
	store     store.Store
	publisher Publisher
	cron      *cron.Cron
	spec      string
	logger    *logger.Logger

	// breached tracks ticket ids already reported overdue so each breach is
	// published once per process lifetime. Guarded by mu; cron fires each
	// run in its own goroutine and Sweep is also callable on demand.
	mu       sync.Mutex
	breached map[string]struct{}
}

// NewSchedulerService creates a sweeper with a cron spec such as "@every 1m".
func NewSchedulerService(st store.Store, pub Publisher, spec string, log *logger.Logger) *SchedulerService {
	return &SchedulerService{
		store:     st,
		publisher: pub,
		cron:      cron.New(),
		spec:      spec,
		logger:    log,
		breached:  make(map[string]struct{}),
	}
}

// Start registers the sweep job and starts the cron runner.
func (s *SchedulerService) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("ticket sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("ticket sweeper started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep walks every business's tickets once, recomputing derived SLA status
// and updating the gauges. Deadlines are fixed at creation; only the derived
// status moves with the clock.
func (s *SchedulerService) Sweep(ctx context.Context) error {
	businessIDs, err := s.store.TicketBusinessIDs(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, businessID := range businessIDs {
		if err := s.sweepBusiness(ctx, businessID, now); err != nil {
			s.logger.Error("business sweep failed",
				zap.String("business_id", businessID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *SchedulerService) sweepBusiness(ctx context.Context, businessID string, now time.Time) error {
	statusCounts := make(map[model.TicketStatus]int)
	slaCounts := make(map[model.SLAStatus]int)

	offset := 0
	for {
		tickets, total, err := s.store.ListTickets(ctx, businessID, model.TicketFilter{
			Limit:  sweepPageSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}

		for i := range tickets {
			t := &tickets[i]
			statusCounts[t.Status]++

			slaStatus := SLAStatusOf(t, now)
			if t.Status != model.TicketResolved && t.Status != model.TicketClosed {
				slaCounts[slaStatus]++
			}
			if slaStatus == model.SLAOverdue {
				s.reportBreach(ctx, t, now)
			}
		}

		offset += len(tickets)
		if offset >= total || len(tickets) == 0 {
			break
		}
	}

	for _, status := range ticketStatuses {
		metrics.TicketsByStatus.WithLabelValues(businessID, string(status)).Set(float64(statusCounts[status]))
	}
	for _, status := range slaStatuses {
		metrics.TicketsBySLAStatus.WithLabelValues(businessID, string(status)).Set(float64(slaCounts[status]))
	}
	return nil
}

func (s *SchedulerService) reportBreach(ctx context.Context, t *model.Ticket, now time.Time) {
	s.mu.Lock()
	if _, done := s.breached[t.ID]; done {
		s.mu.Unlock()
		return
	}
	s.breached[t.ID] = struct{}{}
	s.mu.Unlock()

	s.logger.Warn("ticket SLA breached",
		zap.String("ticket_number", t.TicketNumber),
		zap.String("business_id", t.BusinessID),
		zap.String("category", string(t.Category)),
		zap.String("priority", string(t.Priority)),
		zap.Duration("overdue_by", now.Sub(t.SLADeadline)),
	)

	if s.publisher == nil {
		return
	}
	event := &model.TicketEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		BusinessID: t.BusinessID,
		TicketID:   t.ID,
		Type:       model.TicketEventSLABreached,
		Detail:     t.SLADeadline.Format(time.RFC3339),
		CreatedAt:  now,
	}
	if _, err := s.publisher.PublishTicketEvent(ctx, event); err != nil {
		s.logger.Error("failed to publish breach event",
			zap.String("ticket_id", t.ID),
			zap.Error(err),
		)
	}
}
