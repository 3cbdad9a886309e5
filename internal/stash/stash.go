package stash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/webstash/webstash/internal/hoststore"
)

// Stash is the cache façade: a uniform get/set/delete/clear surface
// over the session, local, and bounded backends. Each instance owns its
// own backends and store name, so independent instances never share
// state.
type Stash struct {
	cfg Config

	session *KeyVal
	local   *KeyVal
	bounded *Bounded

	client *http.Client
	logger *log.Logger
	fetch  singleflight.Group
}

// New builds a Stash from cfg, filling in defaults for any unset field.
// The zero Config yields a fully in-memory cache.
func New(cfg Config) *Stash {
	if cfg.StoreName == "" {
		cfg.StoreName = DefaultStoreName
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Session == nil {
		cfg.Session = hoststore.NewMemKV()
	}
	if cfg.Local == nil {
		cfg.Local = hoststore.NewMemKV()
	}
	if cfg.Objects == nil {
		cfg.Objects = hoststore.NewMemObject()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Stash{
		cfg:     cfg,
		session: NewKeyVal(cfg.Session),
		local:   NewKeyVal(cfg.Local),
		bounded: NewBounded(cfg.Objects, cfg.MaxEntries, cfg.Logger),
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

// StoreName returns the configured bounded store name.
func (s *Stash) StoreName() string {
	return s.cfg.StoreName
}

// Get returns the value JSON stored for the entry. Session and local
// kinds route by key; the bounded kind routes by url.
func (s *Stash) Get(ctx context.Context, key, url string, kind Kind) ([]byte, bool, error) {
	switch kind {
	case KindSession:
		return s.session.Read(key)
	case KindLocal:
		return s.local.Read(key)
	default:
		return s.bounded.Read(ctx, url)
	}
}

// Set stores value with expiration now+ttl, where ttl is opts.TTL or
// the configured default. Session and local kinds route by key; the
// bounded kind routes by url.
func (s *Stash) Set(ctx context.Context, key, url string, value any, opts Options) error {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	expiration := time.Now().Add(ttl)

	switch opts.Kind {
	case KindSession:
		return s.session.Write(key, value, expiration)
	case KindLocal:
		return s.local.Write(key, value, expiration)
	default:
		return s.bounded.Write(ctx, url, value, expiration)
	}
}

// Delete removes the bounded-store entry under url. Entries stored
// under the same logical identifier in the key/value backends are left
// untouched; that asymmetry is part of the public contract.
func (s *Stash) Delete(ctx context.Context, url string) error {
	return s.bounded.Delete(ctx, url)
}

// ClearAll empties the bounded store and both key/value backends,
// including entries other callers placed in them. Each backend's clear
// is attempted even if an earlier one fails; failures are joined.
func (s *Stash) ClearAll(ctx context.Context) error {
	var errs []error

	if err := s.bounded.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bounded clear: %w", err))
	}
	if err := s.session.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("session clear: %w", err))
	}
	if err := s.local.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("local clear: %w", err))
	}

	return errors.Join(errs...)
}

// Stats reports per-backend entry counts.
func (s *Stash) Stats(ctx context.Context) (Stats, error) {
	boundedLen, err := s.bounded.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		SessionEntries: s.session.Len(),
		LocalEntries:   s.local.Len(),
		BoundedEntries: boundedLen,
		MaxEntries:     s.cfg.MaxEntries,
	}, nil
}

// Get retrieves a typed value from the cache, decoding the stored JSON
// into T.
func Get[T any](ctx context.Context, s *Stash, key, url string, kind Kind) (T, bool, error) {
	var value T

	raw, ok, err := s.Get(ctx, key, url, kind)
	if err != nil || !ok {
		return value, false, err
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return value, true, nil
}

// Set stores a typed value in the cache.
func Set[T any](ctx context.Context, s *Stash, key, url string, value T, opts Options) error {
	return s.Set(ctx, key, url, value, opts)
}
