package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/domain"
	"github.com/dx-community/modmail/internal/gateway"
)

// TranscriptService reads a ticket channel's full history and persists it
// twice: a flat text artifact keyed by channel id, and a structured per-user
// append-only JSON log used by the staff /transcript path. Partial failures
// (one attachment download) are logged and never abort the transcript.
type TranscriptService struct {
	client     gateway.Client
	cfg        config.TranscriptConfig
	logger     *zap.Logger
	httpClient *http.Client
	now        func() time.Time
}

// NewTranscriptService constructs the archiver and ensures its directories.
func NewTranscriptService(client gateway.Client, cfg config.TranscriptConfig, logger *zap.Logger) (*TranscriptService, error) {
	for _, dir := range []string{cfg.Dir, cfg.ImageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir %s: %w", dir, err)
		}
	}
	return &TranscriptService{
		client:     client,
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}, nil
}

// Archive writes the flat text transcript for a channel and returns a
// reference to the artifact.
func (t *TranscriptService) Archive(ctx context.Context, channelID string) (*domain.ArtifactRef, error) {
	history, err := t.client.History(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.CreatedAt.UTC().Format(time.RFC3339), msg.AuthorName, msg.Content)
		for _, att := range msg.Attachments {
			if isImage(att) {
				path, err := t.downloadImage(ctx, channelID, att)
				if err != nil {
					t.logger.Warn("image download failed",
						zap.String("channel_id", channelID),
						zap.String("url", att.URL),
						zap.Error(err))
					fmt.Fprintf(&b, "[Attachment: %s]\n", att.URL)
					continue
				}
				fmt.Fprintf(&b, "[Image saved: %s]\n", path)
			} else {
				fmt.Fprintf(&b, "[Attachment: %s]\n", att.URL)
			}
		}
		b.WriteString("\n")
	}

	path := filepath.Join(t.cfg.Dir, channelID+".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	return &domain.ArtifactRef{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Path:      path,
		SavedAt:   t.now().UTC(),
	}, nil
}

// SaveStructured appends the channel's history to the owner's JSON log,
// keeping only messages authored by the owner or by staff.
func (t *TranscriptService) SaveStructured(ctx context.Context, userID string, channel *gateway.Channel) error {
	history, err := t.client.History(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	lines := make([]domain.TranscriptLine, 0, len(history))
	for _, msg := range history {
		isOwner := msg.AuthorID == userID
		if !isOwner && !msg.AuthorStaff {
			continue
		}
		role := domain.TranscriptRoleStaff
		if isOwner {
			role = domain.TranscriptRoleUser
		}

		content := msg.Content
		for _, embed := range msg.Embeds {
			if embed.Title != "" {
				content += "\n[Embed Title] " + embed.Title
			}
			if embed.Description != "" {
				content += "\n" + embed.Description
			}
			for _, field := range embed.Fields {
				content += "\n" + field.Name + ": " + field.Value
			}
		}
		for _, att := range msg.Attachments {
			if isImage(att) {
				content += "\n[Image] " + att.URL
			} else {
				content += "\n[File] " + att.URL
			}
		}
		if strings.TrimSpace(content) == "" {
			content = "[no text]"
		}

		lines = append(lines, domain.TranscriptLine{
			Timestamp: msg.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			Author:    msg.AuthorName,
			Role:      role,
			Content:   content,
		})
	}

	entry := domain.TranscriptEntry{
		Channel:    channel.Name,
		CategoryID: channel.CategoryID,
		SavedAt:    t.now().UTC().Format("2006-01-02 15:04:05"),
		Messages:   lines,
	}
	return t.appendEntry(userID, entry)
}

// Load returns all structured transcript entries saved for a user.
func (t *TranscriptService) Load(userID string) ([]domain.TranscriptEntry, error) {
	path := t.userLogPath(userID)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []domain.TranscriptEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode transcript log: %w", err)
	}
	return entries, nil
}

// ViewURL builds the staff-facing link served by the transcript web server.
func (t *TranscriptService) ViewURL(userID, token string) string {
	base := strings.TrimRight(t.cfg.BaseURL, "/")
	if token == "" {
		return fmt.Sprintf("%s/transcripts/%s", base, userID)
	}
	return fmt.Sprintf("%s/transcripts/%s?token=%s", base, userID, token)
}

func (t *TranscriptService) appendEntry(userID string, entry domain.TranscriptEntry) error {
	entries, err := t.Load(userID)
	if err != nil {
		t.logger.Warn("existing transcript log unreadable; starting fresh",
			zap.String("user_id", userID), zap.Error(err))
		entries = nil
	}
	entries = append(entries, entry)

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.userLogPath(userID), raw, 0o644)
}

func (t *TranscriptService) userLogPath(userID string) string {
	return filepath.Join(t.cfg.Dir, userID+".json")
}

func (t *TranscriptService) downloadImage(ctx context.Context, channelID string, att gateway.Attachment) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	name := fmt.Sprintf("%s_%s_%s", channelID, att.ID, filepath.Base(att.Filename))
	path := filepath.Join(t.cfg.ImageDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

func isImage(att gateway.Attachment) bool {
	return strings.HasPrefix(att.ContentType, "image/")
}
