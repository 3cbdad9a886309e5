package stash

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record headers used to discriminate entry variants at write time, so
// reads never have to parse speculatively.
const (
	headerKind       = "X-Stash-Kind"
	headerExpires    = "Expires"
	headerAccessedAt = "X-Stash-Accessed-At"

	kindEnvelope = "envelope"
	kindRaw      = "raw"
)

// envelope wraps every ordinary cache entry. Expiration and AccessedAt
// are integer milliseconds since the Unix epoch; Expiration is set only
// at write time and never renewed on read.
type envelope struct {
	Value      json.RawMessage `json:"value"`
	Expiration int64           `json:"expiration"`
	AccessedAt int64           `json:"accessedAt"`
}

// newEnvelope wraps value for storage, stamping the last-access time to
// now and the expiration to the given absolute time.
func newEnvelope(value any, expiration time.Time) (envelope, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to encode cache value: %w", err)
	}
	return envelope{
		Value:      raw,
		Expiration: expiration.UnixMilli(),
		AccessedAt: time.Now().UnixMilli(),
	}, nil
}

func (e envelope) encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// expired reports whether the entry is past its expiration at now.
func (e envelope) expired(now time.Time) bool {
	return now.UnixMilli() > e.Expiration
}

// decodeEnvelope parses a stored envelope. Decode failures surface as
// ErrMalformedEntry so callers can distinguish corruption from misses.
func decodeEnvelope(data []byte) (envelope, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return e, nil
}

// formatMillis renders a time as the decimal ms-epoch header value.
func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// parseMillis parses a decimal ms-epoch header value.
func parseMillis(s string) (int64, bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
