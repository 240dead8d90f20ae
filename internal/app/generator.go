package app

import "context"

// ResponseGenerator is the external text-in/text-out oracle used to
// synthesize assistant replies. The backend (local retrieval, remote model
// service) is invisible to the conversation core; failures surface as
// upstream errors and the caller's context deadline bounds the call.
type ResponseGenerator interface {
	Generate(ctx context.Context, text string) (string, error)
}
