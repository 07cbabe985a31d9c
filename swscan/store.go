package swscan

import (
	"context"
	"sync"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/cj123/applefw/fetch"
)

// DefaultCatalogHost is where Apple serves software update catalogs.
const DefaultCatalogHost = "https://swscan.apple.com/content/catalogs/others"

// Store holds catalogs for the lifetime of a scanning session, one per seed.
// A catalog is fetched at most once per seed; concurrent first requests share a fetch.
type Store struct {
	fetcher    fetch.Fetcher
	host       string
	userAgent  string
	minVersion int
	maxVersion int

	sf singleflight.Group

	mu       sync.RWMutex
	catalogs map[Seed]*Catalog
}

// StoreOptions configures a Store. Zero values fall back to defaults.
type StoreOptions struct {
	Host       string
	UserAgent  string
	MinVersion int
	MaxVersion int
}

// NewStore creates a Store which fetches catalogs with f.
func NewStore(f fetch.Fetcher, opts StoreOptions) *Store {
	if opts.Host == "" {
		opts.Host = DefaultCatalogHost
	}

	if opts.UserAgent == "" {
		opts.UserAgent = fetch.InstallerUserAgent
	}

	if opts.MinVersion == 0 {
		opts.MinVersion = MinMacOS
	}

	if opts.MaxVersion == 0 {
		opts.MaxVersion = MaxMacOS
	}

	return &Store{
		fetcher:    f,
		host:       opts.Host,
		userAgent:  opts.UserAgent,
		minVersion: opts.MinVersion,
		maxVersion: opts.MaxVersion,
		catalogs:   make(map[Seed]*Catalog),
	}
}

// URL returns the full catalog URL for seed.
func (s *Store) URL(seed Seed) (string, error) {
	path, err := BuildURL(s.minVersion, s.maxVersion, seed)

	if err != nil {
		return "", err
	}

	return s.host + path, nil
}

// Loaded reports whether the catalog for seed has already been fetched.
func (s *Store) Loaded(seed Seed) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.catalogs[seed]

	return ok
}

// Catalog returns the catalog for seed, fetching and decoding it on first use.
// Failures are returned to the caller and not cached. A fetch shared between
// callers keeps running when one of them gives up; it is bounded by the
// fetcher's own timeout.
func (s *Store) Catalog(ctx context.Context, seed Seed) (*Catalog, error) {
	seed, err := ParseSeed(string(seed))

	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.catalogs[seed]
	s.mu.RUnlock()

	if ok {
		return c, nil
	}

	// the shared fetch must outlive any single caller; each caller still
	// stops waiting when its own context is done
	flight := s.sf.DoChan(string(seed), func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx), seed)
	})

	select {
	case <-ctx.Done():
		u, _ := s.URL(seed)

		return nil, &fetch.TransportError{URL: u, Err: ctx.Err()}
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}

		if res.Shared {
			log.WithField("seed", seed).Debug("shared in-flight catalog fetch")
		}

		return res.Val.(*Catalog), nil
	}
}

func (s *Store) load(ctx context.Context, seed Seed) (*Catalog, error) {
	// a caller may have finished loading between our check and the flight starting
	s.mu.RLock()
	c, ok := s.catalogs[seed]
	s.mu.RUnlock()

	if ok {
		return c, nil
	}

	u, err := s.URL(seed)

	if err != nil {
		return nil, err
	}

	ctxLog := log.WithFields(log.Fields{
		"seed": seed,
		"url":  u,
	})

	ctxLog.Info("fetching catalog")

	data, err := s.fetcher.Fetch(ctx, u, fetch.Header(s.userAgent))

	if err != nil {
		return nil, err
	}

	c, err = DecodeCatalog(data)

	if err != nil {
		return nil, &DecodeError{What: "catalog", URL: u, Err: err}
	}

	ctxLog.WithField("products", len(c.Products)).Debug("catalog loaded")

	s.mu.Lock()
	s.catalogs[seed] = c
	s.mu.Unlock()

	return c, nil
}
