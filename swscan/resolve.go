package swscan

import (
	"context"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"howett.net/plist"

	"github.com/cj123/applefw/fetch"
)

// key synonyms in order of preference. The last entry is used when none are present.
var (
	buildKeys   = []string{"macOSProductBuildVersion", "BUILD"}
	versionKeys = []string{"macOSProductVersion", "VERSION"}
)

var titleRegex = regexp.MustCompile(`<title>(.+?)</title>`)

// Resolver fills in the title, version and build of catalog products.
type Resolver struct {
	fetcher fetch.Fetcher
}

// NewResolver creates a Resolver which retrieves metadata documents with f.
func NewResolver(f fetch.Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve builds the Product for id.
//
// The title and version are read from the product's server metadata and the build
// from its distribution. If the server metadata can't be used for any reason,
// all three fields are scraped from the distribution instead. Fields that can't be
// found are set to Unknown. Only a failure to retrieve the distribution in that
// second pass is returned.
func (r *Resolver) Resolve(ctx context.Context, c *Catalog, id string) (*Product, error) {
	cp, ok := c.Products[id]

	if !ok || cp == nil {
		return nil, &NotFoundError{ProductID: id}
	}

	p := &Product{
		ID:      id,
		Title:   Unknown,
		Version: Unknown,
		BuildID: Unknown,
	}

	title, err := r.fromServerMetadata(ctx, cp, p)

	if err != nil {
		log.WithError(err).WithField("product", id).Debug("server metadata unusable, reading distribution")

		if err := r.fromDistribution(ctx, cp, p, title); err != nil {
			return nil, err
		}
	}

	p.UploadDate = cp.uploadDate()

	return p, nil
}

// fromServerMetadata is the first tier. It returns any title it read, even on failure.
func (r *Resolver) fromServerMetadata(ctx context.Context, cp *CatalogProduct, p *Product) (string, error) {
	if cp.ServerMetadataURL == "" {
		return "", &MissingDocumentError{ProductID: cp.ID, Document: "server metadata"}
	}

	data, err := r.fetcher.Fetch(ctx, cp.ServerMetadataURL, nil)

	if err != nil {
		return "", err
	}

	var smd serverMetadata

	if _, err := plist.Unmarshal(data, &smd); err != nil {
		return "", &DecodeError{What: "server metadata", URL: cp.ServerMetadataURL, Err: err}
	}

	title := smd.Localization["English"].Title

	if title == "" {
		return "", errors.New("swscan: server metadata has no English title")
	}

	if smd.Version == "" {
		return title, errors.New("swscan: server metadata has no version")
	}

	dist, err := r.distribution(ctx, cp)

	if err != nil {
		return title, err
	}

	p.Title = title
	p.Version = smd.Version
	p.BuildID = extractOrUnknown(dist, buildKeys)

	return title, nil
}

// fromDistribution is the fallback tier.
func (r *Resolver) fromDistribution(ctx context.Context, cp *CatalogProduct, p *Product, title string) error {
	dist, err := r.distribution(ctx, cp)

	if err != nil {
		return err
	}

	p.BuildID = extractOrUnknown(dist, buildKeys)
	p.Version = extractOrUnknown(dist, versionKeys)

	if t, err := extractTitle(dist); err == nil {
		p.Title = t
	} else if title != "" {
		p.Title = title
	} else {
		p.Title = Unknown
	}

	return nil
}

func (r *Resolver) distribution(ctx context.Context, cp *CatalogProduct) (string, error) {
	u := cp.distributionURL()

	if u == "" {
		return "", &MissingDocumentError{ProductID: cp.ID, Document: "English distribution"}
	}

	data, err := r.fetcher.Fetch(ctx, u, nil)

	if err != nil {
		return "", err
	}

	return string(data), nil
}

// keyName picks the first synonym present in doc.
func keyName(doc string, synonyms []string) string {
	for _, key := range synonyms[:len(synonyms)-1] {
		if strings.Contains(doc, key) {
			return key
		}
	}

	return synonyms[len(synonyms)-1]
}

// extractKey returns the <string> value following <key>name</key>.
// The document is scanned for tokens rather than parsed.
func extractKey(doc, name string) (string, error) {
	parts := strings.Split(doc, "<key>"+name+"</key>")

	if len(parts) < 2 {
		return "", errExtractionMiss
	}

	parts = strings.Split(parts[1], "<string>")

	if len(parts) < 2 {
		return "", errExtractionMiss
	}

	return strings.Split(parts[1], "</string>")[0], nil
}

func extractOrUnknown(doc string, synonyms []string) string {
	v, err := extractKey(doc, keyName(doc, synonyms))

	if err != nil {
		return Unknown
	}

	return v
}

func extractTitle(doc string) (string, error) {
	m := titleRegex.FindStringSubmatch(doc)

	if m == nil {
		return "", errExtractionMiss
	}

	return m[1], nil
}
