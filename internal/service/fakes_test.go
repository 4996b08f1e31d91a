package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/gateway"
	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/repository"
)

// ----- Fake ticket repository -----

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket // keyed by channel id
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ticket
	copied.Status = domain.TicketStatusOpen
	copied.CreatedAt = time.Now().UTC()
	r.tickets[ticket.ChannelID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[channelID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetOpenByUser(_ context.Context, userID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.UserID == userID && ticket.Status == domain.TicketStatusOpen {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListOpen(_ context.Context) ([]domain.Ticket, error) {
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

func (r *fakeTicketRepo) Claim(_ context.Context, channelID, modID, modUsername string) error {
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

func (r *fakeTicketRepo) Transfer(_ context.Context, channelID, modID, modUsername string) error {
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

func (r *fakeTicketRepo) Close(_ context.Context, channelID string, closedAt time.Time) error {
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

func (r *fakeTicketRepo) CloseByUser(_ context.Context, userID string, closedAt time.Time) error {
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

// ----- Fake scheduler -----

type scheduledCall struct {
	timer domain.Timer
}

type fakeScheduler struct {
	mu          sync.Mutex
	scheduled   []scheduledCall
	cancelled   []string // "<channel>/<action>"
	scheduleErr error
}

func (s *fakeScheduler) Schedule(_ context.Context, timer domain.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduleErr != nil {
		return s.scheduleErr
	}
	s.scheduled = append(s.scheduled, scheduledCall{timer: timer})
	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, channelID string, action domain.TimerAction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, channelID+"/"+string(action))
	for i, call := range s.scheduled {
		if call.timer.ChannelID == channelID && call.timer.Action == action {
			s.scheduled = append(s.scheduled[:i], s.scheduled[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeScheduler) CancelAll(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, channelID+"/*")
	kept := s.scheduled[:0]
	for _, call := range s.scheduled {
		if call.timer.ChannelID != channelID {
			kept = append(kept, call)
		}
	}
	s.scheduled = kept
	return nil
}

func (s *fakeScheduler) pendingActions(channelID string) []domain.TimerAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TimerAction
	for _, call := range s.scheduled {
		if call.timer.ChannelID == channelID {
			out = append(out, call.timer.Action)
		}
	}
	return out
}

// ----- Fake watcher repository -----

type fakeWatcherRepo struct {
	mu       sync.Mutex
	watchers map[string][]string
}

func newFakeWatcherRepo() *fakeWatcherRepo {
	return &fakeWatcherRepo{watchers: make(map[string][]string)}
}

func (r *fakeWatcherRepo) Add(_ context.Context, channelID, modID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.watchers[channelID] {
		if existing == modID {
			return false, nil
		}
	}
	r.watchers[channelID] = append(r.watchers[channelID], modID)
	return true, nil
}

func (r *fakeWatcherRepo) Remove(_ context.Context, channelID, modID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.watchers[channelID][:0]
	for _, existing := range r.watchers[channelID] {
		if existing != modID {
			kept = append(kept, existing)
		}
	}
	r.watchers[channelID] = kept
	return nil
}

func (r *fakeWatcherRepo) List(_ context.Context, channelID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.watchers[channelID]...), nil
}

// ----- Fake macro repository -----

type fakeMacroRepo struct {
	mu     sync.Mutex
	macros map[string]string
}

func newFakeMacroRepo() *fakeMacroRepo {
	return &fakeMacroRepo{macros: make(map[string]string)}
}

func (r *fakeMacroRepo) Get(_ context.Context, key string) (*domain.MacroResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	response, ok := r.macros[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.MacroResponse{Key: key, Response: response}, nil
}

func (r *fakeMacroRepo) Add(_ context.Context, macro domain.MacroResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.macros[macro.Key]; ok {
		return repository.ErrMacroExists
	}
	r.macros[macro.Key] = macro.Response
	return nil
}

func (r *fakeMacroRepo) Remove(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.macros[key]; !ok {
		return false, nil
	}
	delete(r.macros, key)
	return true, nil
}

func (r *fakeMacroRepo) ListKeys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for key := range r.macros {
		keys = append(keys, key)
	}
	return keys, nil
}

// ----- Fake gateway client -----

type sentMessage struct {
	ChannelID string
	Msg       gateway.Outbound
}

type fakeClient struct {
	mu sync.Mutex

	channels map[string]*gateway.Channel
	users    map[string]*gateway.User
	members  map[string]*gateway.Member
	history  map[string][]gateway.HistoryMessage

	sent       []sentMessage
	dms        []sentMessage // ChannelID carries the user id
	deletedMsg []string
	deletedCh  []string
	editedDMs  []string
	reactions  []string

	dmErr     error // forced SendDM failure
	nextSeq   int
	createdCh []gateway.ChannelCreate
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		channels: make(map[string]*gateway.Channel),
		users:    make(map[string]*gateway.User),
		members:  make(map[string]*gateway.Member),
		history:  make(map[string][]gateway.HistoryMessage),
	}
}

func (c *fakeClient) SendMessage(_ context.Context, channelID string, msg gateway.Outbound) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{ChannelID: channelID, Msg: msg})
	c.nextSeq++
	return fmt.Sprintf("m%d", c.nextSeq), nil
}

func (c *fakeClient) SendDM(_ context.Context, userID string, msg gateway.Outbound) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dmErr != nil {
		return "", c.dmErr
	}
	c.dms = append(c.dms, sentMessage{ChannelID: userID, Msg: msg})
	c.nextSeq++
	return fmt.Sprintf("dm%d", c.nextSeq), nil
}

func (c *fakeClient) EditDM(_ context.Context, userID, messageID string, _ gateway.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editedDMs = append(c.editedDMs, userID+"/"+messageID)
	return nil
}

func (c *fakeClient) DeleteDM(_ context.Context, userID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedMsg = append(c.deletedMsg, "dm:"+userID+"/"+messageID)
	return nil
}

func (c *fakeClient) DeleteMessage(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedMsg = append(c.deletedMsg, channelID+"/"+messageID)
	return nil
}

func (c *fakeClient) CreateChannel(_ context.Context, req gateway.ChannelCreate) (*gateway.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	channel := &gateway.Channel{
		ID:         fmt.Sprintf("ch%d", c.nextSeq),
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Topic:      req.Topic,
	}
	c.channels[channel.ID] = channel
	c.createdCh = append(c.createdCh, req)
	return channel, nil
}

func (c *fakeClient) DeleteChannel(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channelID]; !ok {
		return gateway.ErrChannelNotFound
	}
	delete(c.channels, channelID)
	c.deletedCh = append(c.deletedCh, channelID)
	return nil
}

func (c *fakeClient) MoveChannel(_ context.Context, channelID, categoryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	channel, ok := c.channels[channelID]
	if !ok {
		return gateway.ErrChannelNotFound
	}
	channel.CategoryID = categoryID
	return nil
}

func (c *fakeClient) CreateCategory(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	return fmt.Sprintf("cat%d", c.nextSeq), nil
}

func (c *fakeClient) CategoryByName(_ context.Context, name string) (string, error) {
	return "", gateway.ErrChannelNotFound
}

func (c *fakeClient) Channel(_ context.Context, channelID string) (*gateway.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	channel, ok := c.channels[channelID]
	if !ok {
		return nil, gateway.ErrChannelNotFound
	}
	copied := *channel
	return &copied, nil
}

func (c *fakeClient) User(_ context.Context, userID string) (*gateway.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user, ok := c.users[userID]
	if !ok {
		return nil, fmt.Errorf("unknown user %s", userID)
	}
	copied := *user
	return &copied, nil
}

func (c *fakeClient) Member(_ context.Context, userID string) (*gateway.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	member, ok := c.members[userID]
	if !ok {
		return &gateway.Member{PresentInGuild: false}, nil
	}
	copied := *member
	return &copied, nil
}

func (c *fakeClient) History(_ context.Context, channelID string) ([]gateway.HistoryMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.HistoryMessage{}, c.history[channelID]...), nil
}

func (c *fakeClient) React(_ context.Context, channelID, messageID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, channelID+"/"+messageID+"/"+emoji)
	return nil
}

func (c *fakeClient) lastSent() *sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return &c.sent[len(c.sent)-1]
}

func (c *fakeClient) sentTo(channelID string) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMessage
	for _, msg := range c.sent {
		if msg.ChannelID == channelID {
			out = append(out, msg)
		}
	}
	return out
}

func (c *fakeClient) sentContaining(channelID, substr string) bool {
	for _, msg := range c.sentTo(channelID) {
		if strings.Contains(msg.Msg.Content, substr) {
			return true
		}
		if msg.Msg.Embed != nil && (strings.Contains(msg.Msg.Embed.Description, substr) || strings.Contains(msg.Msg.Embed.Title, substr)) {
			return true
		}
	}
	return false
}

// ----- Assembly helpers -----

func testDiscordConfig() config.DiscordConfig {
	return config.DiscordConfig{
		Token:         "test-token",
		GuildID:       "g1",
		StaffRoleID:   "staff-role",
		LogChannelID:  "log-channel",
		CommandPrefix: "!",
		CategoryIDs: map[string]string{
			"reports": "cat-reports",
			"appeals": "cat-appeals",
			"contact": "cat-contact",
		},
	}
}

func testTicketConfig() config.TicketConfig {
	return config.TicketConfig{ReminderHours: 48, SuspendHours: 24, PollIntervalSecs: 300}
}

func newTestLifecycle(t *testing.T) (*LifecycleService, *fakeTicketRepo, *fakeScheduler, *fakeClient, *fakeWatcherRepo) {
	t.Helper()
	tickets := newFakeTicketRepo()
	sched := &fakeScheduler{}
	client := newFakeClient()
	watchers := newFakeWatcherRepo()

	transcripts, err := NewTranscriptService(client, config.TranscriptConfig{
		Dir:      t.TempDir(),
		ImageDir: t.TempDir(),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("transcript service: %v", err)
	}

	svc := NewLifecycleService(LifecycleDependencies{
		TicketRepo:  tickets,
		WatcherRepo: watchers,
		Scheduler:   sched,
		Client:      client,
		Transcripts: transcripts,
		DiscordCfg:  testDiscordConfig(),
		TicketCfg:   testTicketConfig(),
		Logger:      zap.NewNop(),
		Metrics:     observability.NewMetrics(),
	})
	return svc, tickets, sched, client, watchers
}
