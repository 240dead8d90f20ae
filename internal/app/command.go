// Package app is the application layer: commands, queries, the synchronous
// dispatch buses, and the handlers that orchestrate the conversation
// aggregate, the unit of work, and the response generator.
package app

import "github.com/google/uuid"

// Command is a request to change state. Every command carries a correlation
// id for tracing; the id does not influence dispatch.
type Command interface {
	CommandID() uuid.UUID
}

// Query is a read-only request. Like commands, queries carry a correlation
// id for tracing.
type Query interface {
	QueryID() uuid.UUID
}

// BaseCommand supplies the correlation identity. Concrete commands embed it.
type BaseCommand struct {
	ID uuid.UUID
}

// NewBaseCommand mints a fresh correlation id.
func NewBaseCommand() BaseCommand { return BaseCommand{ID: uuid.New()} }

// CommandID implements Command.
func (b BaseCommand) CommandID() uuid.UUID { return b.ID }

// BaseQuery supplies the correlation identity. Concrete queries embed it.
type BaseQuery struct {
	ID uuid.UUID
}

// NewBaseQuery mints a fresh correlation id.
func NewBaseQuery() BaseQuery { return BaseQuery{ID: uuid.New()} }

// QueryID implements Query.
func (b BaseQuery) QueryID() uuid.UUID { return b.ID }
