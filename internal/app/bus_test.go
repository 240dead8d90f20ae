package app

import (
	"context"
	"errors"
	"testing"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

func TestCommandBus_DispatchesByExactType(t *testing.T) {
	bus := NewCommandBus()

	bus.Register(RenameConversation{}, func(_ context.Context, cmd Command) (any, error) {
		c := cmd.(RenameConversation)
		return Ack{Title: c.Title}, nil
	})
	bus.Register(ArchiveConversation{}, func(context.Context, Command) (any, error) {
		return Ack{Archived: true}, nil
	})

	res, err := bus.Dispatch(context.Background(), RenameConversation{
		BaseCommand: NewBaseCommand(),
		Title:       "renamed",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ack := res.(Ack); ack.Title != "renamed" {
		t.Fatalf("wrong handler ran: %+v", ack)
	}
}

func TestCommandBus_UnknownTypeIsNotFound(t *testing.T) {
	bus := NewCommandBus()
	_, err := bus.Dispatch(context.Background(), PinMessage{BaseCommand: NewBaseCommand()})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found for unregistered command, got %v", err)
	}
}

func TestCommandBus_ReRegisterReplacesHandler(t *testing.T) {
	bus := NewCommandBus()

	bus.Register(StartConversation{}, func(context.Context, Command) (any, error) {
		return ConversationStarted{Title: "old"}, nil
	})
	bus.Register(StartConversation{}, func(context.Context, Command) (any, error) {
		return ConversationStarted{Title: "new"}, nil
	})

	res, err := bus.Dispatch(context.Background(), StartConversation{BaseCommand: NewBaseCommand()})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := res.(ConversationStarted).Title; got != "new" {
		t.Fatalf("handler = %q, want the replacement", got)
	}
}

func TestQueryBus_AskAndUnknown(t *testing.T) {
	bus := NewQueryBus()

	bus.Register(ListMessages{}, func(_ context.Context, q Query) (any, error) {
		return MessagePage{NextCursor: "tok"}, nil
	})

	res, err := bus.Ask(context.Background(), ListMessages{BaseQuery: NewBaseQuery()})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.(MessagePage).NextCursor != "tok" {
		t.Fatalf("unexpected result: %+v", res)
	}

	_, err = bus.Ask(context.Background(), GetConversationDetails{BaseQuery: NewBaseQuery()})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found for unregistered query, got %v", err)
	}
}

func TestBaseCommand_CarriesCorrelationID(t *testing.T) {
	a := NewBaseCommand()
	b := NewBaseCommand()
	if a.CommandID() == b.CommandID() {
		t.Fatal("command ids must be unique")
	}
	q := NewBaseQuery()
	if q.QueryID().String() == "" {
		t.Fatal("query id must be set")
	}
}
