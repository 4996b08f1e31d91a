package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/gateway"
	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/repository"
)

// relayFooterPrefix marks channel confirmations with the id of the DM they
// produced, so a staff reply-to can edit or delete that DM later.
const relayFooterPrefix = "MsgRef:"

// ErrNoRelayRef signals that a referenced message carries no DM reference.
var ErrNoRelayRef = errors.New("referenced message has no delivery reference")

// OwnerResolver resolves the user a ticket channel belongs to.
type OwnerResolver interface {
	OwnerOfChannel(ctx context.Context, channelID string) (string, error)
}

// MacroService sends staff replies to ticket owners, either free-form or
// from the stored macro table, and manages the macro table itself. Every
// outbound reply leaves a channel confirmation whose footer carries the DM
// message id for later edit or delete.
type MacroService struct {
	macros  repository.MacroRepository
	client  gateway.Client
	owners  OwnerResolver
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewMacroService constructs the service.
func NewMacroService(macros repository.MacroRepository, client gateway.Client, owners OwnerResolver, logger *zap.Logger, metrics *observability.Metrics) *MacroService {
	return &MacroService{
		macros:  macros,
		client:  client,
		owners:  owners,
		logger:  logger,
		metrics: metrics,
	}
}

// AddMacro stores a new canned reply. Keys are case-insensitive.
func (m *MacroService) AddMacro(ctx context.Context, key, response string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || response == "" {
		return errors.New("macro key and response must be non-empty")
	}
	return m.macros.Add(ctx, domain.MacroResponse{Key: key, Response: response})
}

// RemoveMacro deletes a canned reply; false when the key did not exist.
func (m *MacroService) RemoveMacro(ctx context.Context, key string) (bool, error) {
	return m.macros.Remove(ctx, strings.ToLower(strings.TrimSpace(key)))
}

// ListMacroKeys returns every stored key in order.
func (m *MacroService) ListMacroKeys(ctx context.Context) ([]string, error) {
	return m.macros.ListKeys(ctx)
}

// SendMacro relays the macro body for key to the ticket owner. The first
// return is false when the key is unknown, which lets unknown commands fall
// through silently.
func (m *MacroService) SendMacro(ctx context.Context, channelID, staffName, key string) (bool, error) {
	macro, err := m.macros.Get(ctx, strings.ToLower(key))
	if err != nil {
		if repository.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, m.Relay(ctx, channelID, staffName, macro.Response)
}

// Relay DMs content to the ticket owner and posts a channel confirmation
// footed with the DM message id. A refused DM becomes an in-channel notice
// rather than an error.
func (m *MacroService) Relay(ctx context.Context, channelID, staffName, content string) error {
	userID, err := m.owners.OwnerOfChannel(ctx, channelID)
	if err != nil {
		return err
	}

	dmID, err := m.client.SendDM(ctx, userID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Staff Response",
			Description: content,
			Color:       colorBlue,
		},
	})
	if err != nil {
		if errors.Is(err, gateway.ErrCannotDM) {
			if _, sendErr := m.client.SendMessage(ctx, channelID, gateway.Outbound{
				Embed: &gateway.Embed{
					Description: fmt.Sprintf("Could not DM <@%s>. They may have DMs disabled.", userID),
					Color:       colorRed,
				},
			}); sendErr != nil {
				m.logger.Debug("dm-failed notice failed", zap.Error(sendErr))
			}
			return nil
		}
		return fmt.Errorf("relay dm: %w", err)
	}

	if _, err := m.client.SendMessage(ctx, channelID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Response Sent",
			Description: content,
			Color:       colorGreen,
			AuthorName:  staffName,
			FooterText:  relayFooterPrefix + dmID,
		},
	}); err != nil {
		m.logger.Warn("relay confirmation failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return nil
}

// EditRelayed rewrites the DM referenced by a confirmation footer and
// posts a fresh confirmation carrying the same footer, so further edits
// keep resolving to the same DM.
func (m *MacroService) EditRelayed(ctx context.Context, channelID, staffName, footer, content string) error {
	dmID, ok := ParseRelayRef(footer)
	if !ok {
		return ErrNoRelayRef
	}
	userID, err := m.owners.OwnerOfChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := m.client.EditDM(ctx, userID, dmID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Staff Response",
			Description: content,
			Color:       colorBlue,
		},
	}); err != nil {
		return fmt.Errorf("edit relayed dm: %w", err)
	}

	if _, err := m.client.SendMessage(ctx, channelID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Response Edited",
			Description: content,
			Color:       colorGreen,
			AuthorName:  staffName,
			FooterText:  relayFooterPrefix + dmID,
		},
	}); err != nil {
		m.logger.Warn("edit confirmation failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return nil
}

// DeleteRelayed removes the DM referenced by a confirmation footer.
func (m *MacroService) DeleteRelayed(ctx context.Context, channelID, footer string) error {
	dmID, ok := ParseRelayRef(footer)
	if !ok {
		return ErrNoRelayRef
	}
	userID, err := m.owners.OwnerOfChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := m.client.DeleteDM(ctx, userID, dmID); err != nil {
		return fmt.Errorf("delete relayed dm: %w", err)
	}
	return nil
}

// ParseRelayRef extracts the DM message id from a confirmation footer.
func ParseRelayRef(footer string) (string, bool) {
	if !strings.HasPrefix(footer, relayFooterPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(footer, relayFooterPrefix))
	if id == "" {
		return "", false
	}
	return id, true
}
