// Package swscan resolves macOS products from Apple's software update catalogs.
package swscan

import (
	"context"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/cj123/applefw/fetch"
)

// DefaultConcurrency is the number of products resolved at once.
const DefaultConcurrency = 4

// Scanner lists and finds macOS products. Catalogs are cached for the
// lifetime of the Scanner.
type Scanner struct {
	store       *Store
	resolver    *Resolver
	concurrency int
}

// Options configures a Scanner.
type Options struct {
	Store       StoreOptions
	Concurrency int
}

// NewScanner creates a Scanner. If f == nil, an HTTPFetcher with default settings is used.
func NewScanner(f fetch.Fetcher, opts Options) *Scanner {
	if f == nil {
		f = fetch.NewHTTPFetcher(nil, "")
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	return &Scanner{
		store:       NewStore(f, opts.Store),
		resolver:    NewResolver(f),
		concurrency: opts.Concurrency,
	}
}

// Store returns the Scanner's catalog store.
func (s *Scanner) Store() *Store {
	return s.store
}

// Products returns every product of the seed's catalog matching mode.
func (s *Scanner) Products(ctx context.Context, seed Seed, mode Mode) ([]*Product, error) {
	c, err := s.store.Catalog(ctx, seed)

	if err != nil {
		return nil, err
	}

	return s.resolveAll(ctx, c, Select(c, mode))
}

// Find returns the products matching q, with their packages filled in.
func (s *Scanner) Find(ctx context.Context, seed Seed, mode Mode, q Query) ([]*Product, error) {
	if q.IsZero() {
		return nil, nil
	}

	c, err := s.store.Catalog(ctx, seed)

	if err != nil {
		return nil, err
	}

	products, err := s.resolveAll(ctx, c, Select(c, mode))

	if err != nil {
		return nil, err
	}

	var matched []*Product

	for _, p := range products {
		if q.Matches(p) {
			matched = append(matched, Expand(c, p))
		}
	}

	log.WithFields(log.Fields{
		"seed":    seed,
		"mode":    mode,
		"matched": len(matched),
	}).Debug("product query")

	return matched, nil
}

// resolveAll resolves ids concurrently, keeping their order.
func (s *Scanner) resolveAll(ctx context.Context, c *Catalog, ids []string) ([]*Product, error) {
	products := make([]*Product, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		i, id := i, id

		g.Go(func() error {
			p, err := s.resolver.Resolve(ctx, c, id)

			if err != nil {
				return err
			}

			products[i] = p

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return products, nil
}
