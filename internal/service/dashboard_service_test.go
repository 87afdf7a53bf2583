package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var fixedNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

func newDashboardService(tickets *memoryTickets, users *memoryUsers, cache DashboardCache) *DashboardService {
	deps := DashboardDependencies{
		TicketRepo: tickets,
		Location:   time.UTC,
		Clock:      func() time.Time { return fixedNow },
	}
	if users != nil {
		deps.UserRepo = users
	}
	if cache != nil {
		deps.Cache = cache
	}
	return NewDashboardService(deps)
}

// Three tickets created today, one of them closed by an admin.
func TestDashboardAfterToggle(t *testing.T) {
	repo := newMemoryTickets()
	repo.now = func() time.Time { return fixedNow }
	tickets := NewTicketService(TicketDependencies{TicketRepo: repo})
	ctx := context.Background()

	var created []*domain.Ticket
	for i := 0; i < 3; i++ {
		ticket, err := tickets.CreateTicket(ctx, ownerA, sampleFields(fmt.Sprintf("ticket %d", i)))
		require.NoError(t, err)
		created = append(created, ticket)
	}
	_, err := tickets.ToggleStatus(ctx, admin, created[1].ID)
	require.NoError(t, err)

	stats, err := newDashboardService(repo, nil, nil).Stats(ctx, admin)
	require.NoError(t, err)

	assert.Equal(t, domain.DashboardOverview{
		TotalTickets:   3,
		OpenTickets:    2,
		ClosedTickets:  1,
		ResolutionRate: 33,
	}, stats.Overview)
	assert.Equal(t, domain.DashboardToday{
		NewTickets:      3,
		ResolvedTickets: 1,
		ActiveTickets:   2,
	}, stats.Today)
	assert.Equal(t, []domain.StatusCount{
		{Status: domain.TicketStatusOpen, Count: 2},
		{Status: domain.TicketStatusClosed, Count: 1},
	}, stats.TicketsByStatus)

	last := stats.DailyStats[len(stats.DailyStats)-1]
	assert.Equal(t, domain.DailyStat{Date: "2026-03-15", Total: 3, Open: 2, Closed: 1}, last)
}

func TestDashboardForbiddenForNonAdmin(t *testing.T) {
	repo := newMemoryTickets()
	svc := newDashboardService(repo, nil, nil)

	_, err := svc.Stats(context.Background(), ownerA)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	assert.Equal(t, "Only admins can access dashboard stats.", apperrors.ToDomainError(err).Message)
	assert.Zero(t, repo.callCount())

	_, err = svc.Stats(context.Background(), domain.Identity{})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
}

func TestDashboardStoreFailure(t *testing.T) {
	repo := newMemoryTickets()
	repo.err = errors.New("db down")

	_, err := newDashboardService(repo, nil, nil).Stats(context.Background(), admin)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))
	assert.Equal(t, "Failed to fetch dashboard statistics.", apperrors.ToDomainError(err).Message)
}

func TestDashboardOwnerLookupFailure(t *testing.T) {
	repo := newMemoryTickets()
	repo.seed(domain.Ticket{OwnerID: ownerA.ID, Status: domain.TicketStatusOpen, CreatedAt: fixedNow})
	users := newMemoryUsers()
	users.err = errors.New("db down")

	_, err := newDashboardService(repo, users, nil).Stats(context.Background(), admin)
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))
}

func TestBuildDashboardEmpty(t *testing.T) {
	stats := BuildDashboard(nil, fixedNow)

	assert.Equal(t, domain.DashboardOverview{}, stats.Overview)
	assert.Equal(t, domain.DashboardToday{}, stats.Today)
	assert.Empty(t, stats.RecentTickets)
	assert.Empty(t, stats.TicketsByStatus)
	require.Len(t, stats.DailyStats, 7)
	for _, day := range stats.DailyStats {
		assert.Zero(t, day.Total)
	}
}

func TestBuildDashboardResolutionRateRounding(t *testing.T) {
	tests := []struct {
		open, closed int
		want         int
	}{
		{open: 1, closed: 0, want: 0},
		{open: 0, closed: 1, want: 100},
		{open: 1, closed: 1, want: 50},
		{open: 1, closed: 2, want: 67},
		{open: 7, closed: 1, want: 13},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_open_%d_closed", tt.open, tt.closed), func(t *testing.T) {
			var tickets []domain.Ticket
			for i := 0; i < tt.open; i++ {
				tickets = append(tickets, domain.Ticket{ID: uuid.NewString(), Status: domain.TicketStatusOpen, CreatedAt: fixedNow})
			}
			for i := 0; i < tt.closed; i++ {
				tickets = append(tickets, domain.Ticket{ID: uuid.NewString(), Status: domain.TicketStatusClosed, CreatedAt: fixedNow})
			}

			stats := BuildDashboard(tickets, fixedNow)
			assert.Equal(t, tt.want, stats.Overview.ResolutionRate)
			assert.Equal(t, stats.Overview.TotalTickets, stats.Overview.OpenTickets+stats.Overview.ClosedTickets)
		})
	}
}

func TestBuildDashboardBreakdownOmitsEmptyGroups(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: "a", Status: domain.TicketStatusClosed, CreatedAt: fixedNow},
		{ID: "b", Status: domain.TicketStatusClosed, CreatedAt: fixedNow},
	}
	stats := BuildDashboard(tickets, fixedNow)

	assert.Equal(t, []domain.StatusCount{{Status: domain.TicketStatusClosed, Count: 2}}, stats.TicketsByStatus)
}

func TestBuildDashboardDailyTrend(t *testing.T) {
	day := func(offset, hour int) time.Time {
		return time.Date(2026, 3, 15+offset, hour, 0, 0, 0, time.UTC)
	}
	tickets := []domain.Ticket{
		{ID: "today-open", Status: domain.TicketStatusOpen, CreatedAt: day(0, 9)},
		{ID: "today-midnight", Status: domain.TicketStatusClosed, CreatedAt: day(0, 0)},
		{ID: "yesterday", Status: domain.TicketStatusClosed, CreatedAt: day(-1, 23)},
		{ID: "six-days-ago", Status: domain.TicketStatusOpen, CreatedAt: day(-6, 12)},
		{ID: "too-old", Status: domain.TicketStatusOpen, CreatedAt: day(-7, 12)},
		{ID: "tomorrow", Status: domain.TicketStatusOpen, CreatedAt: day(1, 1)},
	}

	stats := BuildDashboard(tickets, fixedNow)

	require.Len(t, stats.DailyStats, 7)
	assert.Equal(t, []domain.DailyStat{
		{Date: "2026-03-09", Total: 1, Open: 1},
		{Date: "2026-03-10"},
		{Date: "2026-03-11"},
		{Date: "2026-03-12"},
		{Date: "2026-03-13"},
		{Date: "2026-03-14", Total: 1, Closed: 1},
		{Date: "2026-03-15", Total: 2, Open: 1, Closed: 1},
	}, stats.DailyStats)

	assert.Equal(t, domain.DashboardToday{NewTickets: 2, ResolvedTickets: 1, ActiveTickets: 1}, stats.Today)
	assert.Equal(t, 6, stats.Overview.TotalTickets)
}

func TestBuildDashboardTrendCrossesMonthBoundary(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	stats := BuildDashboard(nil, now)

	dates := make([]string, 0, len(stats.DailyStats))
	for _, d := range stats.DailyStats {
		dates = append(dates, d.Date)
	}
	assert.Equal(t, []string{
		"2026-02-24", "2026-02-25", "2026-02-26", "2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02",
	}, dates)
}

func TestBuildDashboardUsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, loc)
	// 22:00 UTC on the 14th is already the 15th in UTC+10
	created := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)

	stats := BuildDashboard([]domain.Ticket{{ID: "x", Status: domain.TicketStatusOpen, CreatedAt: created}}, now)

	assert.Equal(t, 1, stats.Today.NewTickets)
	assert.Equal(t, "2026-03-15", stats.DailyStats[6].Date)
	assert.Equal(t, 1, stats.DailyStats[6].Total)
}

func TestDashboardRecentTickets(t *testing.T) {
	repo := newMemoryTickets()
	var ids []string
	for i := 0; i < 12; i++ {
		ticket := repo.seed(domain.Ticket{
			OwnerID:   ownerA.ID,
			Status:    domain.TicketStatusOpen,
			CreatedAt: fixedNow.Add(-time.Duration(i) * time.Minute),
		})
		ids = append(ids, ticket.ID)
	}
	orphan := repo.seed(domain.Ticket{OwnerID: uuid.NewString(), Status: domain.TicketStatusOpen, CreatedAt: fixedNow.Add(time.Minute)})
	users := newMemoryUsers(domain.User{ID: ownerA.ID, Name: "Ada", Email: "ada@example.com", Picture: "ada.png", Role: domain.RoleUser})

	stats, err := newDashboardService(repo, users, nil).Stats(context.Background(), admin)
	require.NoError(t, err)

	require.Len(t, stats.RecentTickets, 10)
	assert.Equal(t, orphan.ID, stats.RecentTickets[0].Ticket.ID)
	assert.Nil(t, stats.RecentTickets[0].Owner)
	for i, entry := range stats.RecentTickets[1:] {
		assert.Equal(t, ids[i], entry.Ticket.ID)
		require.NotNil(t, entry.Owner)
		assert.Equal(t, domain.UserProfile{Name: "Ada", Email: "ada@example.com", Picture: "ada.png"}, *entry.Owner)
	}
	for i := 1; i < len(stats.RecentTickets); i++ {
		assert.False(t, stats.RecentTickets[i].Ticket.CreatedAt.After(stats.RecentTickets[i-1].Ticket.CreatedAt))
	}
}

func TestDashboardCacheHit(t *testing.T) {
	repo := newMemoryTickets()
	cache := new(MockDashboardCache)
	cached := &domain.DashboardStats{
		Overview:    domain.DashboardOverview{TotalTickets: 42},
		GeneratedAt: fixedNow.Add(-time.Minute),
	}
	cache.On("Version", mock.Anything).Return(int64(4), nil).Once()
	cache.On("Get", mock.Anything, int64(4)).Return(cached, nil).Once()

	stats, err := newDashboardService(repo, nil, cache).Stats(context.Background(), admin)
	require.NoError(t, err)

	assert.Same(t, cached, stats)
	assert.Zero(t, repo.callCount())
	cache.AssertExpectations(t)
}

func TestDashboardCacheMissStoresSnapshot(t *testing.T) {
	repo := newMemoryTickets()
	repo.seed(domain.Ticket{OwnerID: ownerA.ID, Status: domain.TicketStatusOpen, CreatedAt: fixedNow})
	cache := new(MockDashboardCache)
	cache.On("Version", mock.Anything).Return(int64(2), nil).Once()
	cache.On("Get", mock.Anything, int64(2)).Return(nil, nil).Once()
	cache.On("Set", mock.Anything, int64(2), mock.MatchedBy(func(s *domain.DashboardStats) bool {
		return s.Overview.TotalTickets == 1 && s.GeneratedAt.Equal(fixedNow)
	})).Return(nil).Once()

	stats, err := newDashboardService(repo, nil, cache).Stats(context.Background(), admin)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Overview.TotalTickets)
	cache.AssertExpectations(t)
}

func TestDashboardCacheFromPreviousDayIsIgnored(t *testing.T) {
	repo := newMemoryTickets()
	cache := new(MockDashboardCache)
	stale := &domain.DashboardStats{
		Overview:    domain.DashboardOverview{TotalTickets: 99},
		GeneratedAt: fixedNow.AddDate(0, 0, -1),
	}
	cache.On("Version", mock.Anything).Return(int64(0), nil).Once()
	cache.On("Get", mock.Anything, int64(0)).Return(stale, nil).Once()
	cache.On("Set", mock.Anything, int64(0), mock.Anything).Return(nil).Once()

	stats, err := newDashboardService(repo, nil, cache).Stats(context.Background(), admin)
	require.NoError(t, err)

	assert.Zero(t, stats.Overview.TotalTickets)
	assert.Equal(t, 1, repo.callCount())
	cache.AssertExpectations(t)
}

func TestDashboardCacheFailuresAreNotFatal(t *testing.T) {
	repo := newMemoryTickets()
	cache := new(MockDashboardCache)
	cache.On("Version", mock.Anything).Return(int64(0), nil).Once()
	cache.On("Get", mock.Anything, int64(0)).Return(nil, errors.New("redis down")).Once()
	cache.On("Set", mock.Anything, int64(0), mock.Anything).Return(errors.New("redis down")).Once()

	stats, err := newDashboardService(repo, nil, cache).Stats(context.Background(), admin)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	cache.AssertExpectations(t)
}

func TestDashboardSkipsCacheWhenVersionUnavailable(t *testing.T) {
	repo := newMemoryTickets()
	repo.seed(domain.Ticket{OwnerID: ownerA.ID, Status: domain.TicketStatusOpen, CreatedAt: fixedNow})
	cache := new(MockDashboardCache)
	cache.On("Version", mock.Anything).Return(int64(0), errors.New("redis down")).Once()

	stats, err := newDashboardService(repo, nil, cache).Stats(context.Background(), admin)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Overview.TotalTickets)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
}

func TestDashboardChangeDuringComputationIsNotMasked(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	repo := newMemoryTickets()
	repo.now = func() time.Time { return fixedNow }
	tickets := NewTicketService(TicketDependencies{TicketRepo: repo, Dispatcher: dispatcher})
	svc := newDashboardService(repo, nil, newMemoryDashboardCache())
	svc.RegisterHandlers(dispatcher)
	ctx := context.Background()

	created, err := tickets.CreateTicket(ctx, ownerA, sampleFields("printer"))
	require.NoError(t, err)

	// the ticket closes after the snapshot has read it but before it is cached
	repo.onList = func() {
		_, err := tickets.ToggleStatus(ctx, admin, created.ID)
		require.NoError(t, err)
	}
	first, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Overview.OpenTickets)

	second, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Overview.OpenTickets)
	assert.Equal(t, 1, second.Overview.ClosedTickets)

	// with nothing changing in between, the next call is served from cache
	calls := repo.callCount()
	third, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, second.Overview, third.Overview)
	assert.Equal(t, calls, repo.callCount())
}

func TestDashboardInvalidationOutlivesRequestContext(t *testing.T) {
	cache := new(MockDashboardCache)
	cache.On("Invalidate", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	})).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, newDashboardService(newMemoryTickets(), nil, cache).InvalidateCache(ctx))
	cache.AssertExpectations(t)
}

func TestDashboardInvalidatedByTicketEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	cache := new(MockDashboardCache)
	cache.On("Invalidate", mock.Anything).Return(nil).Times(3)

	newDashboardService(newMemoryTickets(), nil, cache).RegisterHandlers(dispatcher)

	repo := newMemoryTickets()
	tickets := NewTicketService(TicketDependencies{TicketRepo: repo, Dispatcher: dispatcher})
	ctx := context.Background()

	created, err := tickets.CreateTicket(ctx, ownerA, sampleFields("x"))
	require.NoError(t, err)
	_, err = tickets.ToggleStatus(ctx, admin, created.ID)
	require.NoError(t, err)
	require.NoError(t, tickets.DeleteTicket(ctx, ownerA, created.ID))

	cache.AssertExpectations(t)
}

func TestDashboardWithoutCacheSkipsRegistration(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := newDashboardService(newMemoryTickets(), nil, nil)

	svc.RegisterHandlers(dispatcher)

	assert.NoError(t, svc.InvalidateCache(context.Background()))
	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
}
