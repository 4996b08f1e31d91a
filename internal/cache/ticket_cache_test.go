package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/repository"
)

// memTicketRepo is an in-memory TicketRepository that counts read calls so
// tests can tell a cache hit from a delegated lookup.
type memTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	byChan  int
	byUser  int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ticket
	if copied.Status == "" {
		copied.Status = domain.TicketStatusOpen
	}
	copied.CreatedAt = time.Now().UTC()
	r.tickets[ticket.ChannelID] = &copied
	return nil
}

func (r *memTicketRepo) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChan++
	ticket, ok := r.tickets[channelID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) GetOpenByUser(_ context.Context, userID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser++
	for _, ticket := range r.tickets {
		if ticket.UserID == userID && ticket.Status == domain.TicketStatusOpen {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) ListOpen(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusOpen {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (r *memTicketRepo) Claim(_ context.Context, channelID, modID, modUsername string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[channelID]
	if !ok || ticket.Status != domain.TicketStatusOpen || ticket.ModID != nil {
		return repository.ErrNotOpen
	}
	ticket.ModID = &modID
	ticket.ModUsername = &modUsername
	return nil
}

func (r *memTicketRepo) Transfer(_ context.Context, channelID, modID, modUsername string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[channelID]
	if !ok || ticket.Status != domain.TicketStatusOpen {
		return repository.ErrNotOpen
	}
	ticket.ModID = &modID
	ticket.ModUsername = &modUsername
	return nil
}

func (r *memTicketRepo) Close(_ context.Context, channelID string, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[channelID]
	if !ok || ticket.Status != domain.TicketStatusOpen {
		return repository.ErrNotOpen
	}
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &closedAt
	return nil
}

func (r *memTicketRepo) CloseByUser(_ context.Context, userID string, closedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	closed := false
	for _, ticket := range r.tickets {
		if ticket.UserID == userID && ticket.Status == domain.TicketStatusOpen {
			ticket.Status = domain.TicketStatusClosed
			ticket.ClosedAt = &closedAt
			closed = true
		}
	}
	if !closed {
		return repository.ErrNotOpen
	}
	return nil
}

func newTestCache(t *testing.T) (*TicketCache, *memTicketRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := newMemTicketRepo()
	return NewTicketCache(inner, client, time.Minute, zap.NewNop()), inner
}

func seedTicket(t *testing.T, c *TicketCache, channelID, userID string) {
	t.Helper()
	err := c.Create(context.Background(), &domain.Ticket{
		ChannelID:  channelID,
		UserID:     userID,
		Username:   "alice",
		TicketType: "reports",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestGetOpenByUser_SecondLookupServedFromCache(t *testing.T) {
	c, inner := newTestCache(t)
	ctx := context.Background()
	seedTicket(t, c, "ch1", "u1")

	for i := 0; i < 2; i++ {
		ticket, err := c.GetOpenByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("GetOpenByUser #%d: %v", i+1, err)
		}
		if ticket.ChannelID != "ch1" {
			t.Fatalf("wrong ticket: %+v", ticket)
		}
	}

	if inner.byUser != 1 {
		t.Fatalf("second lookup must hit the cache, inner saw %d calls", inner.byUser)
	}
}

func TestClose_DropsUserKeyCachedByUserLookup(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	seedTicket(t, c, "ch1", "u1")

	// Only the user key gets cached; the channel key stays cold.
	if _, err := c.GetOpenByUser(ctx, "u1"); err != nil {
		t.Fatalf("GetOpenByUser: %v", err)
	}

	if err := c.Close(ctx, "ch1", time.Now().UTC()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := c.GetOpenByUser(ctx, "u1"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("closed ticket still reported open, err = %v", err)
	}
}

func TestCloseByUser_DropsChannelKey(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	seedTicket(t, c, "ch1", "u1")

	if _, err := c.GetByChannel(ctx, "ch1"); err != nil {
		t.Fatalf("GetByChannel: %v", err)
	}

	if err := c.CloseByUser(ctx, "u1", time.Now().UTC()); err != nil {
		t.Fatalf("CloseByUser: %v", err)
	}

	ticket, err := c.GetByChannel(ctx, "ch1")
	if err != nil {
		t.Fatalf("GetByChannel after close: %v", err)
	}
	if ticket.Status != domain.TicketStatusClosed {
		t.Fatalf("channel key stale after CloseByUser: %+v", ticket)
	}
}

func TestClose_AlreadyClosedStillInvalidates(t *testing.T) {
	c, inner := newTestCache(t)
	ctx := context.Background()
	seedTicket(t, c, "ch1", "u1")

	if _, err := c.GetOpenByUser(ctx, "u1"); err != nil {
		t.Fatalf("GetOpenByUser: %v", err)
	}
	// Row closed behind the cache's back.
	if err := inner.Close(ctx, "ch1", time.Now().UTC()); err != nil {
		t.Fatalf("inner close: %v", err)
	}

	if err := c.Close(ctx, "ch1", time.Now().UTC()); !errors.Is(err, repository.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}

	if _, err := c.GetOpenByUser(ctx, "u1"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("stale user key survived an ErrNotOpen close, err = %v", err)
	}
}

func TestClaim_InvalidatesUserKey(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	seedTicket(t, c, "ch1", "u1")

	if _, err := c.GetOpenByUser(ctx, "u1"); err != nil {
		t.Fatalf("GetOpenByUser: %v", err)
	}

	if err := c.Claim(ctx, "ch1", "mod1", "bob"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	ticket, err := c.GetOpenByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetOpenByUser after claim: %v", err)
	}
	if ticket.ModID == nil || *ticket.ModID != "mod1" {
		t.Fatalf("claim not visible through the cache: %+v", ticket)
	}
}

func TestNilClientDelegatesEverything(t *testing.T) {
	inner := newMemTicketRepo()
	c := NewTicketCache(inner, nil, time.Minute, zap.NewNop())
	ctx := context.Background()
	seedTicket(t, c, "ch1", "u1")

	for i := 0; i < 2; i++ {
		if _, err := c.GetOpenByUser(ctx, "u1"); err != nil {
			t.Fatalf("GetOpenByUser #%d: %v", i+1, err)
		}
	}
	if inner.byUser != 2 {
		t.Fatalf("nil client must delegate every call, inner saw %d", inner.byUser)
	}

	if err := c.Close(ctx, "ch1", time.Now().UTC()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.GetOpenByUser(ctx, "u1"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows after close, got %v", err)
	}
}
