package swscan

import (
	"path"

	"github.com/dustin/go-humanize"
)

// Unknown is used for any field that couldn't be resolved.
const Unknown = "Unknown"

// Product is a macOS product resolved from a catalog.
type Product struct {
	ID         string    `json:"product_id"`
	Title      string    `json:"title"`
	Version    string    `json:"version"`
	BuildID    string    `json:"buildid"`
	UploadDate string    `json:"upload_date"`
	Packages   []Package `json:"packages,omitempty"`
}

// MarketingName returns the name of the macOS release for the product's version, if known.
func (p *Product) MarketingName() string {
	return marketingName(p.Version)
}

// Package is a downloadable part of a product.
type Package struct {
	URL    string `json:"url"`
	Size   int64  `json:"filesize"`
	Digest string `json:"digest,omitempty"`
}

// Filename is the last path element of the package URL.
func (p Package) Filename() string {
	return path.Base(p.URL)
}

// HumanSize renders the package size, e.g. "8.1 GB".
func (p Package) HumanSize() string {
	if p.Size < 0 {
		return humanize.Bytes(0)
	}

	return humanize.Bytes(uint64(p.Size))
}
