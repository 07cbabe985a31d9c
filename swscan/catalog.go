package swscan

import (
	"time"

	"github.com/apex/log"
	"howett.net/plist"
)

// Catalog is a decoded software update catalog. It is read-only once decoded.
type Catalog struct {
	CatalogVersion int
	IndexDate      time.Time
	Products       map[string]*CatalogProduct
}

// CatalogProduct describes one product within a catalog. Fields whose
// catalog values have an unexpected type are left empty.
type CatalogProduct struct {
	ID                string
	ServerMetadataURL string
	Packages          []CatalogPackage
	// PostDate is usually a time.Time, occasionally a string.
	PostDate         interface{}
	Distributions    map[string]string
	ExtendedMetaInfo ExtendedMetaInfo
}

// ExtendedMetaInfo holds the installer identifiers used to classify products.
// Values are left untyped since Apple doesn't keep them consistent.
type ExtendedMetaInfo struct {
	InstallAssistantPackageIdentifiers map[string]interface{}
}

// CatalogPackage is a downloadable package of a product.
type CatalogPackage struct {
	URL         string
	Size        int64
	Digest      string
	MetadataURL string
}

// installAssistantID returns the identifier stored under key, or "" if it is missing or not a string.
func (p *CatalogProduct) installAssistantID(key string) string {
	if p == nil || p.ExtendedMetaInfo.InstallAssistantPackageIdentifiers == nil {
		return ""
	}

	s, _ := p.ExtendedMetaInfo.InstallAssistantPackageIdentifiers[key].(string)

	return s
}

// distributionURL returns the English distribution document URL.
func (p *CatalogProduct) distributionURL() string {
	if u, ok := p.Distributions["English"]; ok {
		return u
	}

	return p.Distributions["en"]
}

// uploadDate renders PostDate as RFC 3339 if it is a date, verbatim if it is a string, "" otherwise.
func (p *CatalogProduct) uploadDate() string {
	switch d := p.PostDate.(type) {
	case time.Time:
		if d.IsZero() {
			return ""
		}

		return d.UTC().Format(time.RFC3339)
	case string:
		return d
	default:
		return ""
	}
}

// DecodeCatalog decodes a binary or XML property list catalog. Only a document
// that isn't a dictionary is an error; products are read field by field and a
// product that isn't a dictionary is skipped.
func DecodeCatalog(data []byte) (*Catalog, error) {
	var root map[string]interface{}

	_, err := plist.Unmarshal(data, &root)

	if err != nil {
		return nil, err
	}

	c := &Catalog{
		CatalogVersion: int(asInt64(root["CatalogVersion"])),
		Products:       make(map[string]*CatalogProduct),
	}

	c.IndexDate, _ = root["IndexDate"].(time.Time)

	for id, raw := range asDict(root["Products"]) {
		dict, ok := raw.(map[string]interface{})

		if !ok {
			log.WithField("product", id).Debug("skipping malformed catalog product")
			continue
		}

		c.Products[id] = decodeProduct(id, dict)
	}

	return c, nil
}

func decodeProduct(id string, dict map[string]interface{}) *CatalogProduct {
	p := &CatalogProduct{
		ID:                id,
		ServerMetadataURL: asString(dict["ServerMetadataURL"]),
		PostDate:          dict["PostDate"],
		Distributions:     make(map[string]string),
		ExtendedMetaInfo: ExtendedMetaInfo{
			InstallAssistantPackageIdentifiers: asDict(asDict(dict["ExtendedMetaInfo"])["InstallAssistantPackageIdentifiers"]),
		},
	}

	for lang, u := range asDict(dict["Distributions"]) {
		if s, ok := u.(string); ok {
			p.Distributions[lang] = s
		}
	}

	packages, _ := dict["Packages"].([]interface{})

	for _, raw := range packages {
		pkg, ok := raw.(map[string]interface{})

		if !ok {
			continue
		}

		p.Packages = append(p.Packages, CatalogPackage{
			URL:         asString(pkg["URL"]),
			Size:        asInt64(pkg["Size"]),
			Digest:      asString(pkg["Digest"]),
			MetadataURL: asString(pkg["MetadataURL"]),
		})
	}

	return p
}

func asDict(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})

	return m
}

func asString(v interface{}) string {
	s, _ := v.(string)

	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// serverMetadata is the subset of a product's ServerMetadataURL document that is read.
type serverMetadata struct {
	Version      string `plist:"CFBundleShortVersionString"`
	Localization map[string]struct {
		Title string `plist:"title"`
	} `plist:"localization"`
}
