package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	recentTicketLimit = 10
	trendDays         = 7
	isoDate           = "2006-01-02"

	invalidateTimeout = 2 * time.Second
)

// DashboardCache holds snapshots keyed by a generation that Invalidate advances. Get returns nil
// on a miss.
type DashboardCache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, version int64) (*domain.DashboardStats, error)
	Set(ctx context.Context, version int64, stats *domain.DashboardStats) error
	Invalidate(ctx context.Context) error
}

// DashboardService computes admin statistics over the ticket set.
type DashboardService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	cache    DashboardCache
	logger   *zap.Logger
	metrics  *observability.Metrics
	location *time.Location
	now      func() time.Time
}

// DashboardDependencies bundles collaborators for the dashboard service.
type DashboardDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Cache      DashboardCache
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Location   *time.Location
	Clock      func() time.Time
}

// NewDashboardService constructs the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	s := &DashboardService{
		tickets:  deps.TicketRepo,
		users:    deps.UserRepo,
		cache:    deps.Cache,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		location: deps.Location,
		now:      deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Stats returns the dashboard snapshot. Every figure derives from a single read of the ticket
// set, so the overview, today's counts and the trend always agree with each other.
func (s *DashboardService) Stats(ctx context.Context, identity domain.Identity) (*domain.DashboardStats, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		return nil, apperrors.NewForbidden("Only admins can access dashboard stats.")
	}

	now := s.now().In(s.location)
	version, cacheable := s.cacheVersion(ctx)
	if cacheable {
		if cached := s.cachedStats(ctx, version, now); cached != nil {
			return cached, nil
		}
	}

	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to fetch dashboard statistics.", err)
	}

	stats := BuildDashboard(tickets, now)
	if err := s.attachOwners(ctx, stats.RecentTickets); err != nil {
		return nil, apperrors.NewInternalError("Failed to fetch dashboard statistics.", err)
	}

	// stored under the generation read before List; a ticket event since then has moved readers on
	if cacheable {
		if err := s.cache.Set(ctx, version, &stats); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return &stats, nil
}

// InvalidateCache drops any cached snapshot. It outlives the caller's context so a request
// that timed out after committing its write still retires the old snapshot.
func (s *DashboardService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	return s.cache.Invalidate(ctx)
}

// RegisterHandlers drops the cached snapshot whenever a ticket changes.
func (s *DashboardService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil || s.cache == nil {
		return
	}
	events.SubscribeAll(dispatcher, events.TicketEventTypes, func(ctx context.Context, _ events.Event) error {
		return s.InvalidateCache(ctx)
	})
}

func (s *DashboardService) cacheVersion(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		s.metrics.RecordDashboardCache("error")
		s.logger.Warn("dashboard cache version read failed", zap.Error(err))
		return 0, false
	}
	return version, true
}

func (s *DashboardService) cachedStats(ctx context.Context, version int64, now time.Time) *domain.DashboardStats {
	stats, err := s.cache.Get(ctx, version)
	if err != nil {
		s.metrics.RecordDashboardCache("error")
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
		return nil
	}
	// a snapshot from a previous day has the wrong "today" and trend window
	if stats == nil || !sameDay(stats.GeneratedAt.In(s.location), now) {
		s.metrics.RecordDashboardCache("miss")
		return nil
	}
	s.metrics.RecordDashboardCache("hit")
	return stats
}

func (s *DashboardService) attachOwners(ctx context.Context, recent []domain.RecentTicket) error {
	if len(recent) == 0 || s.users == nil {
		return nil
	}
	ids := make([]string, 0, len(recent))
	seen := make(map[string]struct{}, len(recent))
	for _, entry := range recent {
		if _, ok := seen[entry.Ticket.OwnerID]; ok {
			continue
		}
		seen[entry.Ticket.OwnerID] = struct{}{}
		ids = append(ids, entry.Ticket.OwnerID)
	}

	owners, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range recent {
		if owner, ok := owners[recent[i].Ticket.OwnerID]; ok {
			profile := owner.Profile()
			recent[i].Owner = &profile
		}
	}
	return nil
}

// BuildDashboard derives every dashboard figure from one ticket set. now must already be in
// the location whose calendar days bound "today" and the trend buckets.
func BuildDashboard(tickets []domain.Ticket, now time.Time) domain.DashboardStats {
	loc := now.Location()
	todayStart := startOfDay(now, 0)
	todayEnd := startOfDay(now, 1)

	stats := domain.DashboardStats{GeneratedAt: now}

	for _, t := range tickets {
		stats.Overview.TotalTickets++
		if t.Status == domain.TicketStatusOpen {
			stats.Overview.OpenTickets++
		}

		created := t.CreatedAt.In(loc)
		if !created.Before(todayStart) && created.Before(todayEnd) {
			stats.Today.NewTickets++
			switch t.Status {
			case domain.TicketStatusOpen:
				stats.Today.ActiveTickets++
			case domain.TicketStatusClosed:
				stats.Today.ResolvedTickets++
			}
		}
	}
	stats.Overview.ClosedTickets = stats.Overview.TotalTickets - stats.Overview.OpenTickets
	stats.Overview.ResolutionRate = resolutionRate(stats.Overview.ClosedTickets, stats.Overview.TotalTickets)

	stats.TicketsByStatus = statusBreakdown(stats.Overview.OpenTickets, stats.Overview.ClosedTickets)
	stats.RecentTickets = recentTickets(tickets, recentTicketLimit)
	stats.DailyStats = dailyTrend(tickets, now, trendDays)
	return stats
}

func resolutionRate(closed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(closed) / float64(total) * 100))
}

func statusBreakdown(open, closed int) []domain.StatusCount {
	groups := make([]domain.StatusCount, 0, 2)
	if open > 0 {
		groups = append(groups, domain.StatusCount{Status: domain.TicketStatusOpen, Count: open})
	}
	if closed > 0 {
		groups = append(groups, domain.StatusCount{Status: domain.TicketStatusClosed, Count: closed})
	}
	return groups
}

func recentTickets(tickets []domain.Ticket, limit int) []domain.RecentTicket {
	sorted := make([]domain.Ticket, len(tickets))
	copy(sorted, tickets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	recent := make([]domain.RecentTicket, 0, len(sorted))
	for _, t := range sorted {
		recent = append(recent, domain.RecentTicket{Ticket: t})
	}
	return recent
}

// dailyTrend buckets tickets into the last n calendar days, oldest first, ending today.
func dailyTrend(tickets []domain.Ticket, now time.Time, days int) []domain.DailyStat {
	type window struct{ start, end time.Time }

	windows := make([]window, days)
	trend := make([]domain.DailyStat, days)
	for i := 0; i < days; i++ {
		offset := i - (days - 1)
		windows[i] = window{start: startOfDay(now, offset), end: startOfDay(now, offset+1)}
		trend[i] = domain.DailyStat{Date: windows[i].start.Format(isoDate)}
	}

	loc := now.Location()
	for _, t := range tickets {
		created := t.CreatedAt.In(loc)
		for i, w := range windows {
			if created.Before(w.start) || !created.Before(w.end) {
				continue
			}
			trend[i].Total++
			if t.Status == domain.TicketStatusOpen {
				trend[i].Open++
			} else {
				trend[i].Closed++
			}
			break
		}
	}
	return trend
}

// startOfDay returns local midnight offset by the given number of days; time.Date normalizes
// month boundaries and DST.
func startOfDay(t time.Time, dayOffset int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+dayOffset, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
