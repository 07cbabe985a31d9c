package swscan

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/cj123/applefw/fetch"
)

// fakeFetcher serves canned bodies keyed by URL.
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string][]byte
	failures map[string]error
	calls    map[string]int
	headers  map[string]http.Header
	gate     chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies:   make(map[string][]byte),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		headers:  make(map[string]http.Header),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	f.headers[url] = header
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &fetch.TransportError{URL: url, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[url]; ok {
		return nil, err
	}

	body, ok := f.bodies[url]

	if !ok {
		return nil, &fetch.TransportError{URL: url, StatusCode: http.StatusNotFound}
	}

	return body, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[url]
}

func mustPlist(t *testing.T, v interface{}) []byte {
	t.Helper()

	data, err := plist.Marshal(v, plist.XMLFormat)
	require.NoError(t, err)

	return data
}

func serverMetadataPlist(t *testing.T, title, version string) []byte {
	return mustPlist(t, map[string]interface{}{
		"CFBundleShortVersionString": version,
		"localization": map[string]interface{}{
			"English": map[string]interface{}{
				"title": title,
			},
		},
	})
}

const bigSurDistribution = `<?xml version="1.0" encoding="utf-8"?>
<installer-gui-script minSpecVersion="2">
    <title>macOS Big Sur</title>
    <auxinfo>
        <dict>
            <key>macOSProductBuildVersion</key>
            <string>20D91</string>
            <key>macOSProductVersion</key>
            <string>11.2.3</string>
        </dict>
    </auxinfo>
</installer-gui-script>`

const highSierraDistribution = `<?xml version="1.0" encoding="utf-8"?>
<installer-script minSpecVersion="1.000000">
    <title>SU_TITLE</title>
    <auxinfo>
        <dict>
            <key>BUILD</key>
            <string>17G66</string>
            <key>VERSION</key>
            <string>10.13.6</string>
        </dict>
    </auxinfo>
</installer-script>`

var postDate = time.Date(2021, time.March, 8, 18, 5, 2, 0, time.UTC)

func installerProduct(id string, sharedSupport bool) map[string]interface{} {
	ids := map[string]interface{}{
		"OSInstall": "com.apple.mpkg.OSInstall",
	}

	if sharedSupport {
		ids = map[string]interface{}{
			"SharedSupport": "com.apple.pkg.InstallAssistant.macOSBigSur",
		}
	}

	return map[string]interface{}{
		"ServerMetadataURL": "https://example.test/" + id + "/smd",
		"PostDate":          postDate,
		"Distributions": map[string]interface{}{
			"English": "https://example.test/" + id + "/English.dist",
		},
		"Packages": []interface{}{
			map[string]interface{}{
				"URL":    "https://example.test/" + id + "/InstallAssistant.pkg",
				"Size":   12183218043,
				"Digest": "3b2d0a1e",
			},
			map[string]interface{}{
				"URL":  "https://example.test/" + id + "/BuildManifest.plist",
				"Size": 1936753,
			},
		},
		"ExtendedMetaInfo": map[string]interface{}{
			"InstallAssistantPackageIdentifiers": ids,
		},
	}
}

func recoveryProduct(id string) map[string]interface{} {
	return map[string]interface{}{
		"ServerMetadataURL": "https://example.test/" + id + "/smd",
		"Distributions": map[string]interface{}{
			"English": "https://example.test/" + id + "/English.dist",
		},
		"Packages": []interface{}{
			map[string]interface{}{
				"URL":  "https://example.test/" + id + "/RecoveryHDMetaDmg.pkg",
				"Size": 487624221,
			},
		},
	}
}

func otherProduct(id string) map[string]interface{} {
	return map[string]interface{}{
		"ServerMetadataURL": "https://example.test/" + id + "/smd",
		"Packages": []interface{}{
			map[string]interface{}{
				"URL":  "https://example.test/" + id + "/SafariUpdate.pkg",
				"Size": 1024,
			},
		},
		"ExtendedMetaInfo": map[string]interface{}{
			"InstallAssistantPackageIdentifiers": map[string]interface{}{
				"SharedSupport": "com.apple.pkg.SomethingElse",
			},
		},
	}
}

func catalogPlist(t *testing.T, products map[string]interface{}) []byte {
	return mustPlist(t, map[string]interface{}{
		"CatalogVersion": 2,
		"Products":       products,
	})
}
