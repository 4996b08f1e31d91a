package events

import (
	"context"
	"errors"
	"testing"

	"github.com/dx-community/modmail/internal/gateway"
)

type recordingHandler struct {
	categories []string
	claims     []string
	err        error
}

func (h *recordingHandler) HandleCategorySelected(_ context.Context, ev CategorySelected) error {
	h.categories = append(h.categories, ev.CategoryKey)
	return h.err
}

func (h *recordingHandler) HandleTicketClaimed(_ context.Context, ev TicketClaimed) error {
	h.claims = append(h.claims, ev.ChannelID)
	return h.err
}

func TestDispatch_RoutesVariantsToMatchingMethod(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(nil)
	d.Register(h)

	d.Dispatch(context.Background(), CategorySelected{CategoryKey: "reports"})
	d.Dispatch(context.Background(), TicketClaimed{ChannelID: "ch1"})

	if len(h.categories) != 1 || h.categories[0] != "reports" {
		t.Errorf("categories = %v, want [reports]", h.categories)
	}
	if len(h.claims) != 1 || h.claims[0] != "ch1" {
		t.Errorf("claims = %v, want [ch1]", h.claims)
	}
}

func TestDispatch_ReportsHandlerErrorsWithoutStopping(t *testing.T) {
	failing := &recordingHandler{err: errors.New("boom")}
	ok := &recordingHandler{}

	var reported []error
	d := NewDispatcher(func(_ Interaction, err error) {
		reported = append(reported, err)
	})
	d.Register(failing)
	d.Register(ok)

	d.Dispatch(context.Background(), TicketClaimed{ChannelID: "ch1"})

	if len(reported) != 1 {
		t.Fatalf("reported %d errors, want 1", len(reported))
	}
	if len(ok.claims) != 1 {
		t.Errorf("second handler received %d events, want 1", len(ok.claims))
	}
}

func TestSource_ReturnsOriginatingInteraction(t *testing.T) {
	ic := gateway.Interaction{ID: "i1", UserID: "u1"}

	var ev Interaction = CategorySelected{Interaction: ic, CategoryKey: "appeals"}
	if ev.Source().ID != "i1" {
		t.Errorf("Source().ID = %q, want i1", ev.Source().ID)
	}

	ev = TicketClaimed{Interaction: ic, ChannelID: "ch1"}
	if ev.Source().UserID != "u1" {
		t.Errorf("Source().UserID = %q, want u1", ev.Source().UserID)
	}
}
