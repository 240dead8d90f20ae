package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// Remote calls an external generation service over HTTP. The wire contract
// is a POST with {"text": ...} answered by {"response": ...}. Any transport
// or protocol failure surfaces as an upstream failure; the caller's context
// deadline bounds the call.
type Remote struct {
	URL    string
	Client *http.Client
}

// NewRemote builds a Remote using the given base URL and client. A nil
// client falls back to http.DefaultClient.
func NewRemote(url string, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{URL: url, Client: client}
}

type generateRequest struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate implements the ResponseGenerator capability.
func (r *Remote) Generate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(generateRequest{Text: text})
	if err != nil {
		return "", domain.Upstreamf("encode generation request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return "", domain.Upstreamf("build generation request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: generation call", domain.ErrTimeout)
		}
		return "", domain.Upstreamf("generation call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", domain.Upstreamf("generation service returned %d: %s", resp.StatusCode, raw)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.Upstreamf("decode generation response: %v", err)
	}
	return out.Response, nil
}
