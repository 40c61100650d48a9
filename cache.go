package velox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface a compile host uses to memoize Plans.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies one compile: the snapshot it ran against, the
// query source text, and every CompileOption that changes codegen
// (spec.md §5 "identical source against an identical snapshot and
// options always compiles to the same Plan"). Unlike a row-cache key
// keyed on table/predicate text, a compile cache never needs to be
// invalidated by writes — only by a new snapshot Epoch.
type CacheKey struct {
	Epoch   uint64
	Source  string
	Dialect string
	Options CompileOptions
}

// String returns the cache key a Cache implementation should store
// EncodePlan's output under: the hex SHA-256 of the key's stable msgpack
// encoding, so Cache implementations never need to reason about
// CompileOptions' shape or size.
func (k CacheKey) String() string {
	b, err := msgpack.Marshal(k)
	if err != nil {
		// CompileOptions' encoded fields are msgpack-encodable
		// primitives (bools, ints, strings, maps; PolicyHook is tagged
		// out); Marshal only fails here if a future field breaks that
		// invariant.
		panic("velox: cache key encoding: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return "plan:" + hex.EncodeToString(sum[:])
}

// EncodePlan serializes a Plan for storage behind a CacheKey. Args is
// encoded as-is; callers that bind driver-specific types into Args
// (e.g. a pgtype wrapper) should normalize them to msgpack-safe values
// before calling Compile.
func EncodePlan(p *Plan) ([]byte, error) {
	return msgpack.Marshal(p)
}

// DecodePlan reverses EncodePlan. The returned Plan has no retained IR
// node, so Describe cannot be called on it; callers needing Describe
// after a cache hit should re-run Compile instead.
func DecodePlan(b []byte) (*Plan, error) {
	var p Plan
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
