// Package uow implements the unit of work: a scoped transactional boundary
// that batches aggregate reads and writes into one outcome and publishes the
// buffered domain events only after a successful commit.
//
// The usual entry point is Run, which guarantees release on every exit path:
//
//	err := uow.Run(ctx, engine, dispatcher, func(u *uow.UnitOfWork) error {
//		repo := repo.NewConversationRepository(u.Tx())
//		uow.Register(u, repo)
//		c, err := repo.Get(ctx, id)
//		if err != nil {
//			return err
//		}
//		u.Track(c)
//		// mutate c, save it
//		return repo.Save(ctx, c)
//	})
//
// A unit of work is used from a single goroutine; concurrent commits on the
// same aggregate are serialized by the aggregate's optimistic version, not
// by the unit of work.
package uow

import (
	"context"
	"errors"
	"reflect"

	"gorm.io/gorm"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// Publisher receives drained domain events after commit. Publication
// failures are the publisher's concern (logged, never raised); DB state
// stays committed regardless.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// EventSource is an aggregate that buffers domain events during the unit of
// work. Tracked sources are drained on commit and cleared on rollback, so
// the buffer is empty outside any scope.
type EventSource interface {
	PullEvents() []domain.Event
	ClearEvents()
}

// UnitOfWork owns one database transaction plus a registry of the
// repositories bound to it.
type UnitOfWork struct {
	engine  *gorm.DB
	pub     Publisher
	tx      *gorm.DB
	active  bool
	repos   map[reflect.Type]any
	tracked []EventSource
}

// New builds an inactive unit of work over the given engine.
func New(engine *gorm.DB, pub Publisher) *UnitOfWork {
	return &UnitOfWork{
		engine: engine,
		pub:    pub,
		repos:  make(map[reflect.Type]any),
	}
}

// Begin opens the transaction. Nesting is not supported: beginning an
// already-active unit of work is a precondition failure.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return domain.Preconditionf("unit of work already active")
	}
	tx := u.engine.WithContext(ctx).Begin()
	if tx.Error != nil {
		return classify(ctx, tx.Error, "begin transaction")
	}
	u.tx = tx
	u.active = true
	return nil
}

// Tx returns the active transaction handle for repository construction.
func (u *UnitOfWork) Tx() *gorm.DB { return u.tx }

// Active reports whether the unit of work currently owns a transaction.
func (u *UnitOfWork) Active() bool { return u.active }

// Track registers an aggregate whose events should be published on commit.
// Sources are drained in the order they were tracked.
func (u *UnitOfWork) Track(src EventSource) {
	u.tracked = append(u.tracked, src)
}

// Register stores repo in the unit of work keyed by its static type, so
// collaborators sharing the scope can retrieve it without re-constructing.
func Register[T any](u *UnitOfWork, repo T) {
	u.repos[reflect.TypeOf((*T)(nil)).Elem()] = repo
}

// Repo retrieves the repository registered under type T.
func Repo[T any](u *UnitOfWork) (T, error) {
	var zero T
	v, ok := u.repos[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return zero, domain.NotFoundf("no repository registered for type %T", zero)
	}
	return v.(T), nil
}

// Commit commits the transaction and then publishes the drained events of
// every tracked aggregate, in tracking order. A publication failure after
// commit is reported by the publisher, not returned: the database state
// remains committed.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if !u.active {
		return domain.Preconditionf("unit of work not active")
	}
	if err := u.tx.Commit().Error; err != nil {
		u.release(true)
		return classify(ctx, err, "commit transaction")
	}

	var events []domain.Event
	for _, src := range u.tracked {
		events = append(events, src.PullEvents()...)
	}
	u.release(false)

	if u.pub != nil && len(events) > 0 {
		u.pub.Publish(ctx, events...)
	}
	return nil
}

// Rollback aborts the transaction and discards all pending events.
func (u *UnitOfWork) Rollback() {
	if !u.active {
		return
	}
	_ = u.tx.Rollback()
	u.release(true)
}

// Close releases the unit of work. A still-active transaction is rolled
// back, which makes a deferred Close the guarantee that no exit path leaks
// the transaction.
func (u *UnitOfWork) Close() {
	if u.active {
		u.Rollback()
	}
}

func (u *UnitOfWork) release(discardEvents bool) {
	if discardEvents {
		for _, src := range u.tracked {
			src.ClearEvents()
		}
	}
	u.tracked = nil
	u.tx = nil
	u.active = false
}

// Run executes fn inside a fresh unit of work: begin, fn, then commit on
// nil or rollback on error or panic. A caller-supplied deadline that fires
// inside the scope surfaces as a timeout failure after rollback.
func Run(ctx context.Context, engine *gorm.DB, pub Publisher, fn func(u *UnitOfWork) error) error {
	u := New(engine, pub)
	if err := u.Begin(ctx); err != nil {
		return err
	}
	defer u.Close()

	if err := fn(u); err != nil {
		u.Rollback()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classify(ctx, err, "unit of work")
		}
		return err
	}
	return u.Commit(ctx)
}

// classify maps a low-level failure onto the domain error kinds: a fired
// deadline is a timeout, everything else infrastructure. Domain-kind errors
// pass through untouched.
func classify(ctx context.Context, err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrPrecondition),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrUpstream),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrInfrastructure):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.ErrTimeout
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return domain.ErrTimeout
	default:
		return domain.Infraf(err, "%s", op)
	}
}
