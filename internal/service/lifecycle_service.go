package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/events"
	"github.com/dx-community/modmail/internal/gateway"
	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/repository"
	"github.com/dx-community/modmail/internal/scheduler"
)

// Embed palette, mirroring the community's established colors.
const (
	colorBlue   = 0x3498db
	colorGreen  = 0x2ecc71
	colorOrange = 0xe67e22
	colorRed    = 0xe74c3c
	colorPurple = 0x9b59b6
)

var topicUserPattern = regexp.MustCompile(`\((\d{17,20})\)`)

// ErrNoOwner signals that a ticket channel's owner could not be determined.
var ErrNoOwner = errors.New("could not determine ticket owner")

// ErrAlreadyOpen signals a duplicate open attempt by a user who already has
// an open ticket.
var ErrAlreadyOpen = errors.New("user already has an open ticket")

// LifecycleService is the ticket state machine: open, claim, transfer,
// suspend, close (immediate or delayed), reminders and watcher pings. The
// ticket and timer stores are the single source of truth; nothing here
// keeps authoritative in-memory state.
type LifecycleService struct {
	tickets     repository.TicketRepository
	watchers    repository.WatcherRepository
	sched       scheduler.Scheduler
	client      gateway.Client
	transcripts *TranscriptService
	discordCfg  config.DiscordConfig
	ticketCfg   config.TicketConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	WatcherRepo repository.WatcherRepository
	Scheduler   scheduler.Scheduler
	Client      gateway.Client
	Transcripts *TranscriptService
	DiscordCfg  config.DiscordConfig
	TicketCfg   config.TicketConfig
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewLifecycleService constructs the controller.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:     deps.TicketRepo,
		watchers:    deps.WatcherRepo,
		sched:       deps.Scheduler,
		client:      deps.Client,
		transcripts: deps.Transcripts,
		discordCfg:  deps.DiscordCfg,
		ticketCfg:   deps.TicketCfg,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

var _ events.InteractionHandler = (*LifecycleService)(nil)

// HandleUserDM routes an inbound direct message: forward into the open
// ticket channel when one exists, otherwise present the category selector.
// A stale row whose channel was deleted outside the bot is closed and the
// DM treated as a fresh contact.
func (s *LifecycleService) HandleUserDM(ctx context.Context, msg gateway.InboundMessage) error {
	if err := s.client.React(ctx, msg.ChannelID, msg.MessageID, "✅"); err != nil {
		s.logger.Debug("dm ack reaction failed", zap.Error(err))
	}

	ticket, err := s.tickets.GetOpenByUser(ctx, msg.AuthorID)
	if err != nil && !repository.IsNoRows(err) {
		return err
	}

	if ticket != nil {
		channel, chErr := s.client.Channel(ctx, ticket.ChannelID)
		if chErr == nil && channel != nil {
			return s.forwardToTicket(ctx, ticket, channel, msg)
		}
		if !errors.Is(chErr, gateway.ErrChannelNotFound) {
			return chErr
		}
		// Channel vanished outside the bot's control: close every stale
		// row the user still holds and fall through to a fresh welcome.
		if err := s.tickets.CloseByUser(ctx, msg.AuthorID, s.now().UTC()); err != nil && !errors.Is(err, repository.ErrNotOpen) {
			s.logger.Warn("closing stale ticket row failed",
				zap.String("channel_id", ticket.ChannelID), zap.Error(err))
		}
		_ = s.sched.CancelAll(ctx, ticket.ChannelID)
	}

	return s.sendWelcome(ctx, msg.ChannelID)
}

func (s *LifecycleService) forwardToTicket(ctx context.Context, ticket *domain.Ticket, channel *gateway.Channel, msg gateway.InboundMessage) error {
	// Any pending suspend is voided by the owner replying.
	if _, err := s.sched.Cancel(ctx, ticket.ChannelID, domain.TimerActionSuspend); err != nil {
		s.logger.Warn("cancelling suspend timer failed",
			zap.String("channel_id", ticket.ChannelID), zap.Error(err))
	}

	s.notifyWatchers(ctx, ticket.ChannelID)

	embed := &gateway.Embed{
		Title:       "User Message",
		Description: msg.Content,
		Color:       colorBlue,
		AuthorName:  msg.AuthorName,
	}
	extra := msg.Attachments
	if len(msg.Attachments) > 0 && strings.HasPrefix(msg.Attachments[0].ContentType, "image/") {
		embed.ImageURL = msg.Attachments[0].URL
		extra = msg.Attachments[1:]
	}
	if _, err := s.client.SendMessage(ctx, channel.ID, gateway.Outbound{Embed: embed}); err != nil {
		return fmt.Errorf("forward message: %w", err)
	}

	if len(extra) > 0 {
		urls := make([]string, 0, len(extra))
		for _, att := range extra {
			urls = append(urls, att.URL)
		}
		if _, err := s.client.SendMessage(ctx, channel.ID, gateway.Outbound{
			Content: "Additional attachments:\n" + strings.Join(urls, "\n"),
		}); err != nil {
			s.logger.Warn("forwarding extra attachments failed", zap.Error(err))
		}
	}
	return nil
}

func (s *LifecycleService) notifyWatchers(ctx context.Context, channelID string) {
	mods, err := s.watchers.List(ctx, channelID)
	if err != nil {
		s.logger.Warn("loading watchers failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if len(mods) == 0 {
		return
	}
	mentions := make([]string, 0, len(mods))
	for _, modID := range mods {
		mentions = append(mentions, "<@"+modID+">")
	}
	if _, err := s.client.SendMessage(ctx, channelID, gateway.Outbound{
		Content: strings.Join(mentions, " "),
	}); err != nil {
		s.logger.Warn("watcher ping failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *LifecycleService) sendWelcome(ctx context.Context, dmChannelID string) error {
	keys := make([]string, 0, len(s.discordCfg.CategoryIDs))
	for key := range s.discordCfg.CategoryIDs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	options := make([]gateway.SelectOption, 0, len(keys))
	for _, key := range keys {
		options = append(options, gateway.SelectOption{Label: titleCase(key), Value: key})
	}

	_, err := s.client.SendMessage(ctx, dmChannelID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Contact Staff",
			Description: "Please select the reason for your ticket below. Have all necessary materials ready before submitting.",
			Color:       colorPurple,
		},
		Components: []gateway.Component{{
			Kind:    gateway.ComponentCategorySelect,
			Options: options,
		}},
	})
	return err
}

// HandleCategorySelected opens a ticket for the selecting user, rejecting
// the attempt if they already have one open.
func (s *LifecycleService) HandleCategorySelected(ctx context.Context, ev events.CategorySelected) error {
	ic := ev.Interaction

	existing, err := s.tickets.GetOpenByUser(ctx, ic.UserID)
	if err != nil && !repository.IsNoRows(err) {
		return err
	}
	if existing != nil {
		if err := ic.Respond(gateway.Outbound{
			Content: "You already have an open ticket. You cannot open another one.",
		}, true); err != nil {
			s.logger.Debug("duplicate-open rejection failed", zap.Error(err))
		}
		return nil
	}

	if ic.DisableSource != nil {
		if err := ic.DisableSource(); err != nil {
			s.logger.Debug("disabling category selector failed", zap.Error(err))
		}
	}

	user, err := s.client.User(ctx, ic.UserID)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	if _, err := s.OpenTicket(ctx, user, ev.CategoryKey); err != nil {
		if errors.Is(err, ErrAlreadyOpen) {
			return ic.Respond(gateway.Outbound{
				Content: "You already have an open ticket. You cannot open another one.",
			}, true)
		}
		return err
	}

	return ic.Respond(gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Ticket Created",
			Description: "Your ticket has been opened. Please describe your issue or request here. A staff member will be with you shortly.",
			Color:       colorGreen,
		},
	}, false)
}

// OpenTicket creates the channel, the row and the unclaimed reminder.
// The one-open-ticket-per-user invariant is enforced by lookup-before-create.
func (s *LifecycleService) OpenTicket(ctx context.Context, user *gateway.User, categoryKey string) (*domain.Ticket, error) {
	existing, err := s.tickets.GetOpenByUser(ctx, user.ID)
	if err != nil && !repository.IsNoRows(err) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyOpen
	}

	categoryID := s.discordCfg.CategoryIDs[categoryKey]
	channel, err := s.client.CreateChannel(ctx, gateway.ChannelCreate{
		Name:       ticketChannelName(user.Username),
		CategoryID: categoryID,
		Topic:      fmt.Sprintf("Ticket for %s (%s)", user.Username, user.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket channel: %w", err)
	}

	ticket := &domain.Ticket{
		ChannelID:   channel.ID,
		UserID:      user.ID,
		Username:    user.Username,
		ChannelName: channel.Name,
		CategoryID:  categoryID,
		TicketType:  categoryKey,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		// The channel exists but the row does not; remove the channel so the
		// user is not left with an untracked conversation.
		if delErr := s.client.DeleteChannel(ctx, channel.ID); delErr != nil {
			s.logger.Error("rolling back ticket channel failed",
				zap.String("channel_id", channel.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create ticket row: %w", err)
	}
	s.metrics.RecordTicketOpened()

	if err := s.sched.Schedule(ctx, domain.Timer{
		ChannelID: channel.ID,
		UserID:    user.ID,
		Action:    domain.TimerActionUnclaimed,
		ExecuteAt: s.now().UTC().Add(s.ticketCfg.ReminderDelay()),
	}); err != nil {
		s.logger.Error("scheduling unclaimed reminder failed",
			zap.String("channel_id", channel.ID), zap.Error(err))
	}

	s.postTicketHeader(ctx, channel.ID, user, categoryKey)

	if _, err := s.client.SendDM(ctx, user.ID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Ticket Created",
			Description: "Your ticket has been opened. Please describe your issue or request here. A staff member will be with you shortly; response times may vary based on volume.",
			Color:       colorGreen,
		},
	}); err != nil && !errors.Is(err, gateway.ErrCannotDM) {
		s.logger.Warn("ticket-created DM failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	return ticket, nil
}

// OpenContactTicket opens a staff-initiated ticket toward a user, reusing
// the regular open path but with restricted channel visibility.
func (s *LifecycleService) OpenContactTicket(ctx context.Context, staffID string, user *gateway.User, reason string) (*domain.Ticket, error) {
	existing, err := s.tickets.GetOpenByUser(ctx, user.ID)
	if err != nil && !repository.IsNoRows(err) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyOpen
	}

	categoryID := s.discordCfg.CategoryIDs["contact"]
	channel, err := s.client.CreateChannel(ctx, gateway.ChannelCreate{
		Name:       ticketChannelName(user.Username),
		CategoryID: categoryID,
		Topic:      fmt.Sprintf("Contact ticket with %s (%s)", user.Username, user.ID),
		RestrictTo: []string{staffID},
	})
	if err != nil {
		return nil, fmt.Errorf("create contact channel: %w", err)
	}

	ticket := &domain.Ticket{
		ChannelID:   channel.ID,
		UserID:      user.ID,
		Username:    user.Username,
		ChannelName: channel.Name,
		CategoryID:  categoryID,
		TicketType:  "contact",
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if delErr := s.client.DeleteChannel(ctx, channel.ID); delErr != nil {
			s.logger.Error("rolling back contact channel failed",
				zap.String("channel_id", channel.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create ticket row: %w", err)
	}
	s.metrics.RecordTicketOpened()

	if _, err := s.client.SendMessage(ctx, channel.ID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Contact Ticket Opened",
			Description: fmt.Sprintf("A new contact ticket has been opened with <@%s>.\nReason: %s", user.ID, reason),
			Color:       colorGreen,
		},
		Components: []gateway.Component{{Kind: gateway.ComponentClaimButton, ChannelID: channel.ID}},
	}); err != nil {
		s.logger.Warn("contact header failed", zap.Error(err))
	}

	if _, err := s.client.SendDM(ctx, user.ID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Staff Contact",
			Description: "Our staff has opened a ticket with you:\n\n" + reason,
			Color:       colorOrange,
		},
	}); err != nil {
		// DM refusal is informational, not a failure.
		if _, sendErr := s.client.SendMessage(ctx, channel.ID, gateway.Outbound{
			Embed: &gateway.Embed{
				Title:       "DM Failed",
				Description: "Could not DM the user (they may have DMs disabled).",
				Color:       colorRed,
			},
		}); sendErr != nil {
			s.logger.Warn("dm-failed notice failed", zap.Error(sendErr))
		}
	}

	return ticket, nil
}

func (s *LifecycleService) postTicketHeader(ctx context.Context, channelID string, user *gateway.User, categoryKey string) {
	if _, err := s.client.SendMessage(ctx, channelID, gateway.Outbound{
		Embed: s.userInfoEmbed(ctx, user),
	}); err != nil {
		s.logger.Warn("user info embed failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	content := fmt.Sprintf("<@&%s>\nNew ticket from <@%s> (ID: %s) - Category: `%s`",
		s.discordCfg.StaffRoleID, user.ID, user.ID, categoryKey)
	if _, err := s.client.SendMessage(ctx, channelID, gateway.Outbound{
		Content: content,
		Embed: &gateway.Embed{
			Description: "A new ticket has been created.\nClick **Claim Ticket** below to take responsibility.",
			Color:       colorBlue,
		},
		Components: []gateway.Component{{Kind: gateway.ComponentClaimButton, ChannelID: channelID}},
	}); err != nil {
		s.logger.Warn("staff header failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *LifecycleService) userInfoEmbed(ctx context.Context, user *gateway.User) *gateway.Embed {
	rolesLine := "Not in server"
	if member, err := s.client.Member(ctx, user.ID); err == nil && member.PresentInGuild {
		if len(member.RoleNames) > 0 {
			rolesLine = strings.Join(member.RoleNames, ", ")
		} else {
			rolesLine = "No roles"
		}
	}

	age := s.now().UTC().Sub(user.CreatedAt)
	days := int(age.Hours() / 24)
	ageLine := fmt.Sprintf("%dy - %dd", days/365, days%365)

	return &gateway.Embed{
		Title: "User Information",
		Color: colorBlue,
		Fields: []gateway.EmbedField{
			{Name: "User", Value: fmt.Sprintf("**Username | ID:** %s | %s", user.Username, user.ID)},
			{Name: "Account Age", Value: "**Account age:** " + ageLine},
			{Name: "Roles", Value: "**Roles:** " + rolesLine},
		},
	}
}

// HandleTicketClaimed assigns the pressing staff member to the ticket.
func (s *LifecycleService) HandleTicketClaimed(ctx context.Context, ev events.TicketClaimed) error {
	ic := ev.Interaction

	err := s.Claim(ctx, ev.ChannelID, ic.UserID, ic.UserName)
	if errors.Is(err, repository.ErrNotOpen) {
		return ic.Respond(gateway.Outbound{
			Content: "This ticket was already claimed or closed.",
		}, true)
	}
	if err != nil {
		return err
	}

	if ic.DisableSource != nil {
		if derr := ic.DisableSource(); derr != nil {
			s.logger.Debug("disabling claim button failed", zap.Error(derr))
		}
	}
	if err := ic.Respond(gateway.Outbound{
		Content: fmt.Sprintf("<@%s> has claimed this ticket.", ic.UserID),
	}, true); err != nil {
		s.logger.Debug("claim ack failed", zap.Error(err))
	}

	if _, err := s.client.SendMessage(ctx, ev.ChannelID, gateway.Outbound{
		Embed: &gateway.Embed{
			Description: fmt.Sprintf("Ticket claimed by <@%s>.", ic.UserID),
			Color:       colorOrange,
		},
	}); err != nil {
		s.logger.Warn("claim notice failed", zap.Error(err))
	}
	return nil
}

// Claim performs the claim state transition: a compare-and-swap on the row
// (open and unclaimed) followed by cancelling the unclaimed reminder.
func (s *LifecycleService) Claim(ctx context.Context, channelID, modID, modUsername string) error {
	if err := s.tickets.Claim(ctx, channelID, modID, modUsername); err != nil {
		return err
	}
	if _, err := s.sched.Cancel(ctx, channelID, domain.TimerActionUnclaimed); err != nil {
		s.logger.Warn("cancelling unclaimed timer failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}
	return nil
}

// Transfer reassigns an open ticket to another staff member.
func (s *LifecycleService) Transfer(ctx context.Context, channelID, modID, modUsername string) error {
	return s.tickets.Transfer(ctx, channelID, modID, modUsername)
}

// Suspend schedules an auto-close after the configured inactivity window
// and archives the transcript. The ticket remains open; the owner replying
// cancels the timer.
func (s *LifecycleService) Suspend(ctx context.Context, channelID string) error {
	userID, err := s.OwnerOfChannel(ctx, channelID)
	if err != nil {
		return err
	}

	if err := s.sched.Schedule(ctx, domain.Timer{
		ChannelID: channelID,
		UserID:    userID,
		Action:    domain.TimerActionSuspend,
		ExecuteAt: s.now().UTC().Add(s.ticketCfg.SuspendDelay()),
	}); err != nil {
		return fmt.Errorf("schedule suspend: %w", err)
	}

	if err := s.LogTranscript(ctx, channelID, ""); err != nil {
		s.logger.Warn("suspend transcript failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return nil
}

// ScheduleClose arranges a delayed close. delay zero closes immediately.
func (s *LifecycleService) ScheduleClose(ctx context.Context, channelID string, delay time.Duration) error {
	userID, err := s.OwnerOfChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if delay <= 0 {
		return s.CloseNow(ctx, channelID, "Closing ticket.")
	}
	return s.sched.Schedule(ctx, domain.Timer{
		ChannelID: channelID,
		UserID:    userID,
		Action:    domain.TimerActionClose,
		ExecuteAt: s.now().UTC().Add(delay),
	})
}

// CancelClose removes a pending scheduled close; false when none existed.
func (s *LifecycleService) CancelClose(ctx context.Context, channelID string) (bool, error) {
	return s.sched.Cancel(ctx, channelID, domain.TimerActionClose)
}

// CloseNow performs the full closure: notice, transcript, owner DM,
// channel deletion, row close and cancellation of every remaining timer.
// External-call failures are best effort; the row transition is not.
func (s *LifecycleService) CloseNow(ctx context.Context, channelID, notice string) error {
	if notice != "" {
		if _, err := s.client.SendMessage(ctx, channelID, gateway.Outbound{
			Embed: &gateway.Embed{Description: notice, Color: colorRed},
		}); err != nil {
			s.logger.Debug("close notice failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	if err := s.LogTranscript(ctx, channelID, ""); err != nil {
		s.logger.Warn("close transcript failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	userID, err := s.OwnerOfChannel(ctx, channelID)
	if err != nil {
		s.logger.Warn("ticket owner unresolved at close", zap.String("channel_id", channelID), zap.Error(err))
	} else {
		s.dmClosed(ctx, channelID, userID)
	}

	if err := s.client.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, gateway.ErrChannelNotFound) {
		s.logger.Error("deleting ticket channel failed", zap.String("channel_id", channelID), zap.Error(err))
	}

	if err := s.tickets.Close(ctx, channelID, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotOpen) {
			s.logger.Debug("ticket row already closed", zap.String("channel_id", channelID))
		} else {
			return fmt.Errorf("close ticket row: %w", err)
		}
	} else {
		s.metrics.RecordTicketClosed()
	}

	if err := s.sched.CancelAll(ctx, channelID); err != nil {
		s.logger.Warn("cancelling remaining timers failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	s.clearWatchers(ctx, channelID)
	return nil
}

// clearWatchers drops watcher rows for a closed channel; they can never
// fire again once the channel is gone.
func (s *LifecycleService) clearWatchers(ctx context.Context, channelID string) {
	mods, err := s.watchers.List(ctx, channelID)
	if err != nil {
		s.logger.Warn("listing watchers for cleanup failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	for _, modID := range mods {
		if err := s.watchers.Remove(ctx, channelID, modID); err != nil {
			s.logger.Warn("removing watcher failed",
				zap.String("channel_id", channelID), zap.String("mod_id", modID), zap.Error(err))
		}
	}
}

func (s *LifecycleService) dmClosed(ctx context.Context, channelID, userID string) {
	_, err := s.client.SendDM(ctx, userID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Your Ticket Has Been Closed",
			Description: "Hello! Your ticket has been closed by our staff.\n\nIf you need further assistance, feel free to open a new ticket.",
			Color:       colorBlue,
		},
	})
	if err == nil {
		return
	}
	if errors.Is(err, gateway.ErrCannotDM) {
		if _, sendErr := s.client.SendMessage(ctx, channelID, gateway.Outbound{
			Embed: &gateway.Embed{
				Description: fmt.Sprintf("Could not DM <@%s>. They may have DMs disabled.", userID),
				Color:       colorRed,
			},
		}); sendErr != nil {
			s.logger.Debug("dm-failed notice failed", zap.Error(sendErr))
		}
		return
	}
	s.logger.Warn("closed DM failed", zap.String("user_id", userID), zap.Error(err))
}

// FireTimer dispatches a due timer. It backs both the poller and the
// in-process scheduler.
func (s *LifecycleService) FireTimer(ctx context.Context, timer domain.Timer) error {
	switch timer.Action {
	case domain.TimerActionUnclaimed:
		return s.fireUnclaimedReminder(ctx, timer)
	case domain.TimerActionSuspend:
		return s.fireSuspendClose(ctx, timer)
	case domain.TimerActionClose:
		return s.CloseNow(ctx, timer.ChannelID, "Closing ticket due to inactivity.")
	default:
		return fmt.Errorf("unknown timer action %q", timer.Action)
	}
}

func (s *LifecycleService) fireUnclaimedReminder(ctx context.Context, timer domain.Timer) error {
	ticket, err := s.tickets.GetByChannel(ctx, timer.ChannelID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil
		}
		return err
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.IsClaimed() {
		return nil
	}
	_, err = s.client.SendMessage(ctx, timer.ChannelID, gateway.Outbound{
		Content: fmt.Sprintf("<@&%s>", s.discordCfg.StaffRoleID),
		Embed: &gateway.Embed{
			Title:       "Ticket Reminder",
			Description: "This ticket is still unclaimed. Please claim it to take responsibility.",
			Color:       colorOrange,
		},
	})
	return err
}

func (s *LifecycleService) fireSuspendClose(ctx context.Context, timer domain.Timer) error {
	if _, err := s.client.SendMessage(ctx, timer.ChannelID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Ticket Closed",
			Description: "User did not respond. This suspended ticket has been closed automatically.",
			Color:       colorRed,
		},
	}); err != nil {
		s.logger.Debug("suspend close notice failed", zap.String("channel_id", timer.ChannelID), zap.Error(err))
	}
	return s.CloseNow(ctx, timer.ChannelID, "")
}

// NotifyMe subscribes a staff member to the owner's next reply. The second
// return reports whether the subscription was new.
func (s *LifecycleService) NotifyMe(ctx context.Context, channelID, modID string) (bool, error) {
	return s.watchers.Add(ctx, channelID, modID)
}

// LogTranscript archives the channel both as a flat artifact and, when the
// owner is known, into the owner's structured log; the artifact is then
// posted to the log channel.
func (s *LifecycleService) LogTranscript(ctx context.Context, channelID, actorID string) error {
	artifact, err := s.transcripts.Archive(ctx, channelID)
	if err != nil {
		return err
	}

	channel, chErr := s.client.Channel(ctx, channelID)
	if chErr == nil {
		if userID, ownerErr := s.OwnerOfChannel(ctx, channelID); ownerErr == nil {
			if err := s.transcripts.SaveStructured(ctx, userID, channel); err != nil {
				s.logger.Warn("structured transcript failed",
					zap.String("channel_id", channelID), zap.Error(err))
			}
		}
	}

	if s.discordCfg.LogChannelID == "" {
		return nil
	}
	description := fmt.Sprintf("Ticket logged: `%s`", channelID)
	if channel != nil {
		description = fmt.Sprintf("Ticket logged: `%s`", channel.Name)
	}
	if actorID != "" {
		description += fmt.Sprintf(" by <@%s>", actorID)
	}
	out := gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Transcript generated",
			Description: description,
			Color:       colorGreen,
		},
	}
	if data, readErr := os.ReadFile(artifact.Path); readErr != nil {
		s.logger.Warn("reading transcript artifact failed",
			zap.String("path", artifact.Path), zap.Error(readErr))
	} else {
		out.Files = []gateway.FilePayload{{Name: filepath.Base(artifact.Path), Data: data}}
	}
	if _, err := s.client.SendMessage(ctx, s.discordCfg.LogChannelID, out); err != nil {
		s.logger.Warn("posting transcript to log channel failed", zap.Error(err))
	}
	return nil
}

// HandleChannelDeleted reconciles the store when a ticket channel is
// removed outside the bot: the row is closed with best-effort owner
// recovery from the channel topic.
func (s *LifecycleService) HandleChannelDeleted(ctx context.Context, ev gateway.ChannelDeleted) {
	userID := UserIDFromTopic(ev.Topic)
	if userID == "" {
		s.logger.Warn("deleted channel had no parsable owner", zap.String("channel_id", ev.ChannelID))
	}

	if err := s.tickets.Close(ctx, ev.ChannelID, s.now().UTC()); err != nil {
		if !errors.Is(err, repository.ErrNotOpen) {
			s.logger.Warn("closing row for deleted channel failed",
				zap.String("channel_id", ev.ChannelID), zap.Error(err))
		}
		return
	}
	s.metrics.RecordTicketClosed()
	_ = s.sched.CancelAll(ctx, ev.ChannelID)
	s.clearWatchers(ctx, ev.ChannelID)
	s.logger.Info("ticket closed after external channel deletion",
		zap.String("channel_id", ev.ChannelID),
		zap.String("user_id", userID))
}

// HandleTyping relays owner DM typing into the ticket channel as a
// transient notice.
func (s *LifecycleService) HandleTyping(ctx context.Context, ev gateway.Typing) {
	if !ev.IsDirect {
		return
	}
	ticket, err := s.tickets.GetOpenByUser(ctx, ev.UserID)
	if err != nil || ticket == nil {
		return
	}
	if _, err := s.client.SendMessage(ctx, ticket.ChannelID, gateway.Outbound{
		Content:     fmt.Sprintf("**<@%s> is typing...**", ev.UserID),
		DeleteAfter: 5 * time.Second,
	}); err != nil {
		s.logger.Debug("typing relay failed", zap.Error(err))
	}
}

// OwnerOfChannel resolves the ticket owner, preferring the channel topic
// and falling back to the ticket row.
func (s *LifecycleService) OwnerOfChannel(ctx context.Context, channelID string) (string, error) {
	if channel, err := s.client.Channel(ctx, channelID); err == nil {
		if userID := UserIDFromTopic(channel.Topic); userID != "" {
			return userID, nil
		}
	}
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		if repository.IsNoRows(err) {
			return "", ErrNoOwner
		}
		return "", err
	}
	if ticket.UserID == "" {
		return "", ErrNoOwner
	}
	return ticket.UserID, nil
}

// UserIDFromTopic extracts the owner snowflake from a ticket channel topic
// of the form "Ticket for name (123456789012345678)".
func UserIDFromTopic(topic string) string {
	m := topicUserPattern.FindStringSubmatch(topic)
	if m == nil {
		return ""
	}
	return m[1]
}

func ticketChannelName(username string) string {
	name := strings.ToLower(strings.ReplaceAll(username, " ", "-"))
	return "dx-" + name
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
