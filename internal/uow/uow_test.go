package uow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// note is a minimal table for exercising transactional semantics.
type note struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

func newEngine(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("uow_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&note{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func countNotes(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&note{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// capturingPublisher records every published event.
type capturingPublisher struct {
	events []domain.Event
}

func (p *capturingPublisher) Publish(_ context.Context, events ...domain.Event) {
	p.events = append(p.events, events...)
}

// stubSource buffers canned events the way an aggregate does.
type stubSource struct {
	pending []domain.Event
}

func (s *stubSource) PullEvents() []domain.Event {
	out := s.pending
	s.pending = nil
	return out
}

func (s *stubSource) ClearEvents() { s.pending = nil }

func TestRun_CommitsOnNil(t *testing.T) {
	db := newEngine(t)

	err := Run(context.Background(), db, nil, func(u *UnitOfWork) error {
		return u.Tx().Create(&note{Body: "kept"}).Error
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countNotes(t, db); got != 1 {
		t.Fatalf("notes = %d, want 1", got)
	}
}

func TestRun_RollsBackOnError(t *testing.T) {
	db := newEngine(t)
	boom := errors.New("boom")

	err := Run(context.Background(), db, nil, func(u *UnitOfWork) error {
		if err := u.Tx().Create(&note{Body: "discarded"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run returned %v, want the callback error", err)
	}
	if got := countNotes(t, db); got != 0 {
		t.Fatalf("notes = %d, want 0 after rollback", got)
	}
}

func TestRun_RollsBackOnPanic(t *testing.T) {
	db := newEngine(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = Run(context.Background(), db, nil, func(u *UnitOfWork) error {
			if err := u.Tx().Create(&note{Body: "discarded"}).Error; err != nil {
				return err
			}
			panic("kaboom")
		})
	}()

	if got := countNotes(t, db); got != 0 {
		t.Fatalf("notes = %d, want 0 after panic rollback", got)
	}

	// The engine must still be usable after the rollback.
	if err := db.Create(&note{Body: "after"}).Error; err != nil {
		t.Fatalf("engine unusable after panic rollback: %v", err)
	}
}

func TestBegin_NestedIsPrecondition(t *testing.T) {
	db := newEngine(t)
	u := New(db, nil)
	defer u.Close()

	if err := u.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err := u.Begin(context.Background())
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("nested Begin returned %v, want precondition", err)
	}
}

func TestCommit_WithoutBeginIsPrecondition(t *testing.T) {
	u := New(newEngine(t), nil)
	if err := u.Commit(context.Background()); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("Commit without Begin returned %v, want precondition", err)
	}
}

func TestCommit_PublishesTrackedEventsInOrder(t *testing.T) {
	db := newEngine(t)
	pub := &capturingPublisher{}

	first := &stubSource{pending: []domain.Event{
		domain.MessageAdded{SenderID: "a"},
		domain.MessageUpdated{Revision: 1},
	}}
	second := &stubSource{pending: []domain.Event{
		domain.ConversationRenamed{Title: "later"},
	}}

	err := Run(context.Background(), db, pub, func(u *UnitOfWork) error {
		u.Track(first)
		u.Track(second)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(pub.events) != 3 {
		t.Fatalf("published = %d events, want 3", len(pub.events))
	}
	wantNS := []string{
		domain.NSMessageAdded,
		domain.NSMessageUpdated,
		domain.NSConversationRenamed,
	}
	for i, ns := range wantNS {
		if pub.events[i].Namespace() != ns {
			t.Fatalf("event %d namespace = %q, want %q", i, pub.events[i].Namespace(), ns)
		}
	}
}

func TestRollback_DiscardsTrackedEvents(t *testing.T) {
	db := newEngine(t)
	pub := &capturingPublisher{}

	src := &stubSource{pending: []domain.Event{domain.MessagePinned{}}}
	err := Run(context.Background(), db, pub, func(u *UnitOfWork) error {
		u.Track(src)
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error from callback")
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events after rollback, want 0", len(pub.events))
	}
	if len(src.pending) != 0 {
		t.Fatalf("source still buffers %d events, want cleared", len(src.pending))
	}
}

func TestRegisterRepo_RoundTripAndMissing(t *testing.T) {
	db := newEngine(t)
	u := New(db, nil)

	type fakeRepo struct{ tag string }
	Register(u, &fakeRepo{tag: "r1"})

	got, err := Repo[*fakeRepo](u)
	if err != nil {
		t.Fatalf("Repo: %v", err)
	}
	if got.tag != "r1" {
		t.Fatalf("got %+v, want the registered instance", got)
	}

	type otherRepo struct{}
	if _, err := Repo[*otherRepo](u); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing repo returned %v, want not-found", err)
	}
}

func TestRun_DeadlineSurfacesAsTimeout(t *testing.T) {
	db := newEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Run(ctx, db, nil, func(u *UnitOfWork) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout kind, got %v", err)
	}
}

func TestClose_ReleasesActiveTransaction(t *testing.T) {
	db := newEngine(t)
	u := New(db, nil)

	if err := u.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := u.Tx().Create(&note{Body: "dangling"}).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	u.Close()

	if u.Active() {
		t.Fatal("unit of work still active after Close")
	}
	if got := countNotes(t, db); got != 0 {
		t.Fatalf("notes = %d, want 0 after Close rollback", got)
	}
	// Close is idempotent.
	u.Close()
}
