package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/repository"
)

type staticOwner struct {
	userID string
	err    error
}

func (o staticOwner) OwnerOfChannel(context.Context, string) (string, error) {
	return o.userID, o.err
}

func newTestMacroService(t *testing.T) (*MacroService, *fakeMacroRepo, *fakeClient) {
	t.Helper()
	macros := newFakeMacroRepo()
	client := newFakeClient()
	svc := NewMacroService(macros, client, staticOwner{userID: "u1"}, zap.NewNop(), observability.NewMetrics())
	return svc, macros, client
}

func TestRelay_DMsOwnerAndFootsConfirmation(t *testing.T) {
	svc, _, client := newTestMacroService(t)

	if err := svc.Relay(context.Background(), "ch1", "bob", "please read the rules"); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	if len(client.dms) != 1 || client.dms[0].ChannelID != "u1" {
		t.Fatalf("owner DM missing: %v", client.dms)
	}
	confirmation := client.lastSent()
	if confirmation == nil || confirmation.Msg.Embed == nil {
		t.Fatalf("confirmation embed missing")
	}
	ref, ok := ParseRelayRef(confirmation.Msg.Embed.FooterText)
	if !ok || !strings.HasPrefix(ref, "dm") {
		t.Fatalf("footer must reference the DM id, got %q", confirmation.Msg.Embed.FooterText)
	}
	if confirmation.Msg.Embed.AuthorName != "bob" {
		t.Fatalf("confirmation should credit the staff member")
	}
}

func TestSendMacro_UnknownKeyFallsThrough(t *testing.T) {
	svc, _, client := newTestMacroService(t)

	sent, err := svc.SendMacro(context.Background(), "ch1", "bob", "nosuch")
	if err != nil {
		t.Fatalf("SendMacro: %v", err)
	}
	if sent {
		t.Fatalf("unknown key must report not-sent")
	}
	if len(client.dms) != 0 {
		t.Fatalf("unknown key must not DM anyone")
	}
}

func TestSendMacro_KnownKeyRelaysBody(t *testing.T) {
	svc, macros, client := newTestMacroService(t)
	macros.macros["verify"] = "Please verify your account first."

	sent, err := svc.SendMacro(context.Background(), "ch1", "bob", "VERIFY")
	if err != nil || !sent {
		t.Fatalf("SendMacro = (%v, %v), want (true, nil)", sent, err)
	}
	if len(client.dms) != 1 || client.dms[0].Msg.Embed.Description != "Please verify your account first." {
		t.Fatalf("macro body not relayed: %v", client.dms)
	}
}

func TestAddMacro_DuplicateKeyRejected(t *testing.T) {
	svc, _, _ := newTestMacroService(t)
	ctx := context.Background()

	if err := svc.AddMacro(ctx, "Rules", "read them"); err != nil {
		t.Fatalf("AddMacro: %v", err)
	}
	err := svc.AddMacro(ctx, "rules", "read them twice")
	if !errors.Is(err, repository.ErrMacroExists) {
		t.Fatalf("case-insensitive duplicate should be rejected, got %v", err)
	}
}

func TestEditRelayed_RequiresFooterRef(t *testing.T) {
	svc, _, client := newTestMacroService(t)
	ctx := context.Background()

	err := svc.EditRelayed(ctx, "ch1", "bob", "no footer here", "new text")
	if !errors.Is(err, ErrNoRelayRef) {
		t.Fatalf("expected ErrNoRelayRef, got %v", err)
	}

	if err := svc.EditRelayed(ctx, "ch1", "bob", "MsgRef:dm42", "new text"); err != nil {
		t.Fatalf("EditRelayed: %v", err)
	}
	if len(client.editedDMs) != 1 || client.editedDMs[0] != "u1/dm42" {
		t.Fatalf("DM not edited: %v", client.editedDMs)
	}
	confirmation := client.lastSent()
	if confirmation.Msg.Embed == nil || confirmation.Msg.Embed.FooterText != "MsgRef:dm42" {
		t.Fatalf("fresh confirmation must carry the same footer")
	}
}

func TestDeleteRelayed_RemovesDM(t *testing.T) {
	svc, _, client := newTestMacroService(t)
	ctx := context.Background()

	if err := svc.DeleteRelayed(ctx, "ch1", "MsgRef:dm42"); err != nil {
		t.Fatalf("DeleteRelayed: %v", err)
	}
	if len(client.deletedMsg) != 1 || client.deletedMsg[0] != "dm:u1/dm42" {
		t.Fatalf("DM not deleted: %v", client.deletedMsg)
	}

	if err := svc.DeleteRelayed(ctx, "ch1", ""); !errors.Is(err, ErrNoRelayRef) {
		t.Fatalf("expected ErrNoRelayRef, got %v", err)
	}
}

func TestParseRelayRef(t *testing.T) {
	cases := map[string]struct {
		footer string
		want   string
		ok     bool
	}{
		"valid":        {"MsgRef:123", "123", true},
		"empty id":     {"MsgRef:", "", false},
		"no prefix":    {"something else", "", false},
		"empty footer": {"", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseRelayRef(tc.footer)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ParseRelayRef(%q) = (%q, %v), want (%q, %v)", tc.footer, got, ok, tc.want, tc.ok)
			}
		})
	}
}
