package cache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultHandshakeTTL bounds how long a login handshake stays open.
const DefaultHandshakeTTL = 10 * time.Minute

// ErrUnknownHandshake is returned when a state token was never issued, has
// expired, or was already used.
var ErrUnknownHandshake = errors.New("unknown or expired login handshake")

// Handshakes keeps one short-lived record per login handshake, keyed by a
// random state token handed to the client.
type Handshakes struct {
	kv  KV
	ttl time.Duration
}

// NewHandshakes creates a handshake store. A zero ttl uses DefaultHandshakeTTL.
func NewHandshakes(kv KV, ttl time.Duration) *Handshakes {
	if ttl <= 0 {
		ttl = DefaultHandshakeTTL
	}
	return &Handshakes{kv: kv, ttl: ttl}
}

func handshakeKey(state string) string {
	return "oauth:state:" + state
}

// Begin opens a handshake and returns its state token. data is returned
// unchanged by Consume.
func (h *Handshakes) Begin(ctx context.Context, data string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	if err := h.kv.Set(ctx, handshakeKey(state), []byte(data), h.ttl); err != nil {
		return "", fmt.Errorf("failed to store handshake: %w", err)
	}
	return state, nil
}

// Consume closes a handshake. A state token can be consumed once.
func (h *Handshakes) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrUnknownHandshake
	}
	data, err := h.kv.Take(ctx, handshakeKey(state))
	if errors.Is(err, ErrMiss) {
		return "", ErrUnknownHandshake
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
