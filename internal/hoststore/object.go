package hoststore

import "context"

// Record is a response-like object held by an ObjectStore: an opaque
// body plus a small set of string headers.
type Record struct {
	Body   []byte
	Header map[string]string
}

// Clone returns a copy of the record that shares no memory with the
// original, so callers can mutate results without corrupting the store.
func (r Record) Clone() Record {
	out := Record{
		Body:   append([]byte(nil), r.Body...),
		Header: make(map[string]string, len(r.Header)),
	}
	for k, v := range r.Header {
		out.Header[k] = v
	}
	return out
}

// ObjectStore is an asynchronous store of records keyed by URL-like
// identifiers. Operations take a context because backing stores may
// involve I/O; enumeration order must be deterministic for a given
// sequence of writes.
type ObjectStore interface {
	// Put stores rec under url, overwriting any prior record.
	Put(ctx context.Context, url string, rec Record) error

	// Match returns the record stored under url, or false if absent.
	Match(ctx context.Context, url string) (Record, bool, error)

	// Delete removes the record under url. It reports whether a record
	// was present; deleting an absent record is not an error.
	Delete(ctx context.Context, url string) (bool, error)

	// Keys lists every stored url in insertion order.
	Keys(ctx context.Context) ([]string, error)

	// Destroy deletes the entire store.
	Destroy(ctx context.Context) error
}
