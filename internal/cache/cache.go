// Package cache provides the read-through result cache for search and
// detail responses. Entries carry law-id scopes so ingestion can invalidate
// exactly the laws it republished.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cache is the result cache contract. Values are opaque serialized bytes.
type Cache interface {
	// Get returns the cached value for key, and whether it was present and
	// unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores val under key with the given TTL. Scopes associate the
	// entry with law ids for targeted invalidation.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration, scopes []string) error

	// Invalidate drops every entry associated with any of the scopes.
	Invalidate(ctx context.Context, scopes ...string) error

	// Close releases backend resources.
	Close() error
}

// Key builds a deterministic cache key from the canonical request shape.
// The query is trimmed and lowercased; filters and scopes are serialized in
// a fixed field order so equivalent requests collide.
func Key(kind, query, mode string, filters map[string]string, topK int) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('\x00')
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	b.WriteByte('\x00')
	b.WriteString(mode)
	b.WriteByte('\x00')

	names := make([]string, 0, len(filters))
	for name := range filters {
		if filters[name] != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(filters[name])
		b.WriteByte('\x00')
	}
	b.WriteString(strconv.Itoa(topK))

	hash := sha256.Sum256([]byte(b.String()))
	return kind + ":" + hex.EncodeToString(hash[:])
}
