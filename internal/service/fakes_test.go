package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var (
	ownerA = domain.Identity{ID: uuid.NewString(), Role: domain.RoleUser}
	ownerB = domain.Identity{ID: uuid.NewString(), Role: domain.RoleUser}
	admin  = domain.Identity{ID: uuid.NewString(), Role: domain.RoleAdmin}
)

// memoryTickets is an in-memory TicketRepository.
type memoryTickets struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
	now     func() time.Time
	err     error
	calls   int
	// onList runs after List has read the tickets, before it returns them.
	onList func()
}

func newMemoryTickets() *memoryTickets {
	return &memoryTickets{tickets: map[string]domain.Ticket{}, now: time.Now}
}

func (r *memoryTickets) seed(t domain.Ticket) domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	r.tickets[t.ID] = t
	return t
}

func (r *memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	ticket.CreatedAt = r.now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = ticket.Status
	stored.TicketFields = ticket.TicketFields
	stored.UpdatedAt = r.now()
	r.tickets[ticket.ID] = stored
	ticket.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memoryTickets) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memoryTickets) List(_ context.Context) ([]domain.Ticket, error) {
	tickets, err := r.filter(func(domain.Ticket) bool { return true })
	if hook := r.onList; hook != nil {
		r.onList = nil
		hook()
	}
	return tickets, err
}

func (r *memoryTickets) ListByOwner(_ context.Context, ownerID string) ([]domain.Ticket, error) {
	return r.filter(func(t domain.Ticket) bool { return t.OwnerID == ownerID })
}

func (r *memoryTickets) filter(keep func(domain.Ticket) bool) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	result := []domain.Ticket{}
	for _, t := range r.tickets {
		if keep(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *memoryTickets) stored(id string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	return t, ok
}

func (r *memoryTickets) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// memoryUsers is an in-memory UserRepository.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func newMemoryUsers(users ...domain.User) *memoryUsers {
	r := &memoryUsers{users: map[string]domain.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *memoryUsers) GetByIDs(_ context.Context, ids []string) (map[string]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := map[string]domain.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *memoryUsers) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []domain.User{}
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *memoryUsers) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u.Role = role
	r.users[id] = u
	return &u, nil
}

// MockDashboardCache is a testify mock of DashboardCache.
type MockDashboardCache struct {
	mock.Mock
}

func (m *MockDashboardCache) Version(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDashboardCache) Get(ctx context.Context, version int64) (*domain.DashboardStats, error) {
	args := m.Called(ctx, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DashboardStats), args.Error(1)
}

func (m *MockDashboardCache) Set(ctx context.Context, version int64, stats *domain.DashboardStats) error {
	return m.Called(ctx, version, stats).Error(0)
}

func (m *MockDashboardCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memoryDashboardCache keeps snapshots per generation, like the Redis cache.
type memoryDashboardCache struct {
	mu        sync.Mutex
	version   int64
	snapshots map[int64]domain.DashboardStats
}

func newMemoryDashboardCache() *memoryDashboardCache {
	return &memoryDashboardCache{snapshots: map[int64]domain.DashboardStats{}}
}

func (c *memoryDashboardCache) Version(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *memoryDashboardCache) Get(_ context.Context, version int64) (*domain.DashboardStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.snapshots[version]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}

func (c *memoryDashboardCache) Set(_ context.Context, version int64, stats *domain.DashboardStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[version] = *stats
	return nil
}

func (c *memoryDashboardCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, c.version)
	c.version++
	return nil
}

// MockPublisher is a testify mock of EventPublisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	return m.Called(ctx, topic, key, payload).Error(0)
}

func sampleFields(subject string) domain.TicketFields {
	return domain.TicketFields{
		Name:          "Ada Lovelace",
		Email:         "ada@example.com",
		Phone:         "555-0100",
		Location:      "Library",
		AvailableTime: "9-11am",
		Subject:       subject,
		Description:   "Projector will not turn on",
	}
}
