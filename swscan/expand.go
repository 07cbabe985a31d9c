package swscan

// Query picks products by any of its non-empty fields.
//
// Matching is an OR across fields: a product matches if any one supplied field
// equals the corresponding resolved value.
type Query struct {
	Title     string
	BuildID   string
	Version   string
	ProductID string
}

// IsZero reports whether no criteria are set.
func (q Query) IsZero() bool {
	return q == Query{}
}

// Matches reports whether p satisfies q.
func (q Query) Matches(p *Product) bool {
	return (q.Title != "" && q.Title == p.Title) ||
		(q.BuildID != "" && q.BuildID == p.BuildID) ||
		(q.Version != "" && q.Version == p.Version) ||
		(q.ProductID != "" && q.ProductID == p.ID)
}

// Expand copies every package of p's catalog entry into p.
func Expand(c *Catalog, p *Product) *Product {
	cp, ok := c.Products[p.ID]

	if !ok || cp == nil {
		return p
	}

	p.Packages = make([]Package, 0, len(cp.Packages))

	for _, pkg := range cp.Packages {
		p.Packages = append(p.Packages, Package{
			URL:    pkg.URL,
			Size:   pkg.Size,
			Digest: pkg.Digest,
		})
	}

	return p
}
