package quotes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/storage/redis/v3"
	"github.com/google/uuid"
)

// pendingMarker holds a fingerprint while its insert is in flight.
const pendingMarker = "pending"

// KV is the subset of fiber.Storage the duplicate guard needs.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}

// Claimer is a KV that can set a key only when it is absent.
type Claimer interface {
	Claim(key string, val []byte, exp time.Duration) (bool, error)
}

// RedisKV adds an atomic claim to the Fiber Redis storage.
type RedisKV struct {
	*redis.Storage
}

// NewRedisKV wraps store for use by the duplicate guard.
func NewRedisKV(store *redis.Storage) *RedisKV {
	return &RedisKV{Storage: store}
}

// Claim sets key with SETNX semantics.
func (r *RedisKV) Claim(key string, val []byte, exp time.Duration) (bool, error) {
	return r.Conn().SetNX(context.Background(), key, val, exp).Result()
}

// DuplicateGuard remembers recent submissions so a double-clicked submit
// button or a retried request does not create two rows.
type DuplicateGuard struct {
	kv     KV
	window time.Duration
}

// NewDuplicateGuard creates a guard. A nil store or zero window disables it.
// Concurrent submissions are only serialized when kv is a Claimer.
func NewDuplicateGuard(kv KV, window time.Duration) *DuplicateGuard {
	return &DuplicateGuard{kv: kv, window: window}
}

func (g *DuplicateGuard) enabled() bool {
	return g != nil && g.kv != nil && g.window > 0
}

// fingerprint identifies a submitter for one destination table.
func fingerprint(table, email, phone string) string {
	h := sha256.Sum256([]byte(table + "|" + strings.ToLower(email) + "|" + phone))
	return "quote:dup:" + hex.EncodeToString(h[:])
}

// Seen returns the ID of a submission stored for the same fingerprint
// within the window. A submission still being inserted is reported with
// uuid.Nil.
func (g *DuplicateGuard) Seen(table, email, phone string) (uuid.UUID, bool) {
	if !g.enabled() || (email == "" && phone == "") {
		return uuid.Nil, false
	}
	raw, err := g.kv.Get(fingerprint(table, email, phone))
	if err != nil {
		slog.Warn("duplicate guard lookup failed", "table", table, "error", err)
		return uuid.Nil, false
	}
	return parseEntry(raw)
}

func parseEntry(raw []byte) (uuid.UUID, bool) {
	if len(raw) == 0 {
		return uuid.Nil, false
	}
	if string(raw) == pendingMarker {
		return uuid.Nil, true
	}
	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Reserve marks the fingerprint as in flight. It returns false when another
// request holds or has stored it. Stores without Claim always reserve.
func (g *DuplicateGuard) Reserve(table, email, phone string) bool {
	if !g.enabled() || (email == "" && phone == "") {
		return true
	}
	c, ok := g.kv.(Claimer)
	if !ok {
		return true
	}
	claimed, err := c.Claim(fingerprint(table, email, phone), []byte(pendingMarker), g.window)
	if err != nil {
		slog.Warn("duplicate guard reserve failed", "table", table, "error", err)
		return true
	}
	return claimed
}

// Release drops a reservation after a failed insert.
func (g *DuplicateGuard) Release(table, email, phone string) {
	if !g.enabled() || (email == "" && phone == "") {
		return
	}
	if err := g.kv.Delete(fingerprint(table, email, phone)); err != nil {
		slog.Warn("duplicate guard release failed", "table", table, "error", err)
	}
}

// Remember records a stored submission for the window.
func (g *DuplicateGuard) Remember(table, email, phone string, id uuid.UUID) {
	if !g.enabled() || (email == "" && phone == "") {
		return
	}
	if err := g.kv.Set(fingerprint(table, email, phone), []byte(id.String()), g.window); err != nil {
		slog.Warn("duplicate guard store failed", "table", table, "error", err)
	}
}
