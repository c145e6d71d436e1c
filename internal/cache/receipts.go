package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/splitthat/internal/models"
)

// DefaultReceiptTTL is how long an extraction result is reused.
const DefaultReceiptTTL = 24 * time.Hour

// ReceiptKey identifies an extraction by the media and by what was asked of
// it. The same receipt with different participants or instructions is a
// different extraction.
func ReceiptKey(media []byte, participants []string, instruction string) string {
	mediaSum := sha256.Sum256(media)
	askSum := sha256.Sum256([]byte(strings.Join(participants, "\x1f") + "\x1e" + instruction))
	return "receipt:" + hex.EncodeToString(mediaSum[:]) + ":" + hex.EncodeToString(askSum[:])
}

// ReceiptCache stores validated extraction results.
type ReceiptCache struct {
	kv  KV
	ttl time.Duration
}

// NewReceiptCache creates a receipt cache. A zero ttl uses DefaultReceiptTTL.
func NewReceiptCache(kv KV, ttl time.Duration) *ReceiptCache {
	if ttl <= 0 {
		ttl = DefaultReceiptTTL
	}
	return &ReceiptCache{kv: kv, ttl: ttl}
}

// Get returns the cached split for key, or false.
func (c *ReceiptCache) Get(ctx context.Context, key string) (*models.Split, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			slog.Warn("Receipt cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var split models.Split
	if err := json.Unmarshal(data, &split); err != nil {
		slog.Warn("Cached receipt is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &split, true
}

// Put stores a split. Failures are logged and otherwise ignored.
func (c *ReceiptCache) Put(ctx context.Context, key string, split *models.Split) {
	data, err := json.Marshal(split)
	if err != nil {
		slog.Warn("Failed to encode receipt for cache", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		slog.Warn("Failed to store receipt in cache", "key", key, "error", err)
	}
}
