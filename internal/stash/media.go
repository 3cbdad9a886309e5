package stash

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/webstash/webstash/internal/hoststore"
)

// blob is a fetched binary payload with its reported content type.
type blob struct {
	data        []byte
	contentType string
}

// FetchBlob retrieves a resource over the network and returns its
// binary payload and content type. A non-2xx status is an error.
// Concurrent fetches of the same URL share a single request.
func (s *Stash) FetchBlob(ctx context.Context, mediaURL string) ([]byte, string, error) {
	v, err, _ := s.fetch.Do(mediaURL, func() (any, error) {
		return s.fetchBlob(ctx, mediaURL)
	})
	if err != nil {
		return nil, "", err
	}

	b := v.(blob)
	return b.data, b.contentType, nil
}

func (s *Stash) fetchBlob(ctx context.Context, mediaURL string) (blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return blob{}, fmt.Errorf("failed to build media request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return blob{}, fmt.Errorf("failed to fetch media %s: %w", mediaURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return blob{}, fmt.Errorf("failed to fetch media %s: HTTP status %d", mediaURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return blob{}, fmt.Errorf("failed to read media body: %w", err)
	}

	return blob{data: data, contentType: resp.Header.Get("Content-Type")}, nil
}

// SetMedia fetches the resource at mediaURL and stores its payload in
// the bounded store under url as a raw record, skipping the envelope.
// The Expires header is informational only; it is not enforced on
// read.
func (s *Stash) SetMedia(ctx context.Context, url, mediaURL string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	data, contentType, err := s.FetchBlob(ctx, mediaURL)
	if err != nil {
		return err
	}

	now := time.Now()
	rec := hoststore.Record{
		Body: data,
		Header: map[string]string{
			headerKind:       kindRaw,
			headerExpires:    now.Add(ttl).UTC().Format(http.TimeFormat),
			headerAccessedAt: formatMillis(now),
		},
	}
	if contentType != "" {
		rec.Header["Content-Type"] = contentType
	}

	s.logger.Debug("cached media", "url", url, "source", mediaURL, "bytes", len(data))
	return s.bounded.putRecord(ctx, url, rec)
}

// GetMedia returns the binary payload stored under url. Raw records
// are returned without an expiry check. A record stored through the
// envelope path is expiry checked and its value JSON returned.
func (s *Stash) GetMedia(ctx context.Context, url string) ([]byte, bool, error) {
	return s.bounded.Read(ctx, url)
}
