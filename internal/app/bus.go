package app

import (
	"context"
	"reflect"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// CommandHandlerFunc handles one command type and returns its result DTO.
type CommandHandlerFunc func(ctx context.Context, cmd Command) (any, error)

// QueryHandlerFunc handles one query type and returns its result DTO.
type QueryHandlerFunc func(ctx context.Context, q Query) (any, error)

// CommandBus routes commands to handlers keyed by the command's exact
// runtime type. Dispatch is synchronous; handler errors propagate unchanged.
//
// Registration policy: re-registering a type replaces the previous handler
// (last writer wins). QueryBus follows the same policy.
//
// The bus is populated once at startup and then only read, so it carries no
// lock; it is not safe for concurrent Register/Dispatch interleavings.
type CommandBus struct {
	handlers map[reflect.Type]CommandHandlerFunc
}

// NewCommandBus returns an empty bus.
func NewCommandBus() *CommandBus {
	return &CommandBus{handlers: make(map[reflect.Type]CommandHandlerFunc)}
}

// Register installs h for the exact type of cmd. The cmd value itself is
// only used as a type witness.
func (b *CommandBus) Register(cmd Command, h CommandHandlerFunc) {
	b.handlers[reflect.TypeOf(cmd)] = h
}

// Dispatch invokes the handler registered for cmd's exact type. No
// inheritance walk is performed: an embedded base type never matches.
// An unregistered type yields a not-found failure.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	h, ok := b.handlers[reflect.TypeOf(cmd)]
	if !ok {
		return nil, domain.NotFoundf("no handler registered for command %T", cmd)
	}
	return h(ctx, cmd)
}

// QueryBus routes queries to handlers keyed by the query's exact runtime
// type. See CommandBus for the registration and dispatch contract.
type QueryBus struct {
	handlers map[reflect.Type]QueryHandlerFunc
}

// NewQueryBus returns an empty bus.
func NewQueryBus() *QueryBus {
	return &QueryBus{handlers: make(map[reflect.Type]QueryHandlerFunc)}
}

// Register installs h for the exact type of q.
func (b *QueryBus) Register(q Query, h QueryHandlerFunc) {
	b.handlers[reflect.TypeOf(q)] = h
}

// Ask invokes the handler registered for q's exact type.
func (b *QueryBus) Ask(ctx context.Context, q Query) (any, error) {
	h, ok := b.handlers[reflect.TypeOf(q)]
	if !ok {
		return nil, domain.NotFoundf("no handler registered for query %T", q)
	}
	return h(ctx, q)
}
