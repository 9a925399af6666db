package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/CodeMentor/internal/domain"
	"github.com/Strob0t/CodeMentor/internal/domain/chat"
	"github.com/Strob0t/CodeMentor/internal/port/modelstream"
)

func TestCreatePersistsEmptyChat(t *testing.T) {
	store := newMockChatStore()
	svc := newTestService(store, &mockGate{}, &mockProvider{}, &mockBroadcaster{})

	c, err := svc.Create(context.Background(), "u1", chat.CreateRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == "" || c.UserID != "u1" {
		t.Fatalf("unexpected chat: %+v", c)
	}
	if _, err := store.GetChat(context.Background(), c.ID); err != nil {
		t.Fatalf("chat not persisted: %v", err)
	}
}

func TestCreateRequiresUser(t *testing.T) {
	svc := newTestService(newMockChatStore(), &mockGate{}, &mockProvider{}, &mockBroadcaster{})
	if _, err := svc.Create(context.Background(), "", chat.CreateRequest{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestGetUnknownChat(t *testing.T) {
	svc := newTestService(newMockChatStore(), &mockGate{}, &mockProvider{}, &mockBroadcaster{})
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContextRehydratesFromStore(t *testing.T) {
	store := newMockChatStore()
	seeded := chat.Chat{
		ID:     "c1",
		UserID: "u1",
		Messages: []chat.Message{
			{ID: "m1", ChatID: "c1", Role: chat.RoleUser, Content: "restored"},
		},
	}
	if err := store.SaveChat(context.Background(), &seeded); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A fresh service instance has no live context for c1; Get must load it.
	svc := newTestService(store, &mockGate{}, &mockProvider{}, &mockBroadcaster{})
	got, err := svc.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "restored" {
		t.Fatalf("history not rehydrated: %+v", got.Messages)
	}
}

func TestTurnDerivesTitle(t *testing.T) {
	store := newMockChatStore()
	provider := &mockProvider{stream: &scriptedStream{events: []modelstream.Event{{TextDelta: "hi"}}}}
	svc := newTestService(store, &mockGate{}, provider, &mockBroadcaster{})
	c := createChat(t, svc)

	turn, _ := svc.SubmitTurn(context.Background(), c.ID, "u1", "Help me plan a web app")
	if _, err := turn.Text.Wait(waitCtx(t)); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	saved, _ := store.GetChat(context.Background(), c.ID)
	if saved.Title != "Help me plan a web app" {
		t.Fatalf("expected title from first user message, got %q", saved.Title)
	}
}

func TestUnitsProjection(t *testing.T) {
	store := newMockChatStore()
	provider := &mockProvider{stream: &scriptedStream{events: []modelstream.Event{{TextDelta: "answer"}}}}
	svc := newTestService(store, &mockGate{}, provider, &mockBroadcaster{})
	c := createChat(t, svc)

	turn, _ := svc.SubmitTurn(context.Background(), c.ID, "u1", "question")
	if _, err := turn.Text.Wait(waitCtx(t)); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	units, err := svc.Units(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Kind != chat.UnitUserText || !units[0].ShowAvatar {
		t.Fatalf("unexpected user unit: %+v", units[0])
	}
	if units[1].Kind != chat.UnitBotText || units[1].Text != "answer" {
		t.Fatalf("unexpected bot unit: %+v", units[1])
	}
}

func TestDeleteDropsLiveContext(t *testing.T) {
	store := newMockChatStore()
	svc := newTestService(store, &mockGate{}, &mockProvider{}, &mockBroadcaster{})
	c := createChat(t, svc)

	if err := svc.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	store := newMockChatStore()
	svc := newTestService(store, &mockGate{}, &mockProvider{}, &mockBroadcaster{})
	createChat(t, svc)
	createChat(t, svc)
	if _, err := svc.Create(context.Background(), "u2", chat.CreateRequest{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chats for u1, got %d", len(got))
	}
}
