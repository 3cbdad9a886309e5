package stash

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/webstash/webstash/internal/hoststore"
)

// Common errors for cache operations
var (
	// ErrMalformedEntry is returned when a stored entry cannot be
	// decoded as an envelope. Corrupt entries are not removed
	// automatically unless they are also expired.
	ErrMalformedEntry = errors.New("malformed cache entry")
)

// Defaults for the public contract.
const (
	// DefaultStoreName is the bounded store name used when none is
	// configured.
	DefaultStoreName = "webstash-v1"

	// DefaultTTL is applied to writes that carry no explicit ttl.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries is the bounded store's entry capacity.
	DefaultMaxEntries = 50
)

// Kind selects which backend an operation routes to.
type Kind int

const (
	// KindBounded routes to the capacity-limited, URL-keyed store.
	KindBounded Kind = iota

	// KindSession routes to the process-lifetime key/value store.
	KindSession

	// KindLocal routes to the durable key/value store.
	KindLocal
)

// String returns the string representation of the storage kind.
func (k Kind) String() string {
	switch k {
	case KindBounded:
		return "bounded"
	case KindSession:
		return "session"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseKind maps a storage kind name to its Kind value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bounded", "":
		return KindBounded, nil
	case "session":
		return KindSession, nil
	case "local":
		return KindLocal, nil
	default:
		return KindBounded, errors.New("unknown storage kind: " + s)
	}
}

// Config holds the collaborators and limits for one Stash instance.
// Every field has a usable zero-value default, so Config{} yields a
// fully in-memory cache.
type Config struct {
	// StoreName names the bounded store (default DefaultStoreName).
	StoreName string

	// MaxEntries caps the bounded store's entry count (default
	// DefaultMaxEntries).
	MaxEntries int

	// DefaultTTL is used by writes without an explicit ttl (default
	// DefaultTTL).
	DefaultTTL time.Duration

	// Session and Local are the two synchronous key/value backends.
	// Defaults are independent in-memory stores.
	Session hoststore.KV
	Local   hoststore.KV

	// Objects is the bounded response-object backend. Default is an
	// in-memory store.
	Objects hoststore.ObjectStore

	// HTTPClient performs media fetches (default http.DefaultClient).
	HTTPClient *http.Client

	// Logger receives debug output (default log.Default()).
	Logger *log.Logger
}

// Options control a single Set call.
type Options struct {
	// TTL overrides the configured default when positive.
	TTL time.Duration

	// Kind selects the target backend (default KindBounded).
	Kind Kind
}

// Stats reports per-backend entry counts.
type Stats struct {
	SessionEntries int
	LocalEntries   int
	BoundedEntries int
	MaxEntries     int
}
