// Package fetch performs the plain HTTP GETs used to retrieve catalogs,
// metadata documents and API responses.
package fetch

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/apex/log"
)

const (
	// InstallerUserAgent is the identity advertised by macOS's installer agent.
	// The catalog server applies content policy keyed on it.
	InstallerUserAgent = "osinstallersetupplaind (unknown version) CFNetwork/720.5.7 Darwin/14.5.0 (x86_64)"

	// SoftwareUpdateUserAgent is the identity advertised by Software Update.
	SoftwareUpdateUserAgent = "Software%20Update (unknown version) CFNetwork/807.0.1 Darwin/16.0.0 (x86_64)"

	// DefaultUserAgent is used for requests that don't need to impersonate anything.
	DefaultUserAgent = "applefw/1.0"
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// TransportError is returned for any network or HTTP failure.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch: %s returned status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch: %s: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPFetcher is a Fetcher backed by an *http.Client.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates an HTTPFetcher. If client == nil, a client with a 30 second timeout is used.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch issues a GET for url. Headers in header override the fetcher's defaults.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)

	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", f.userAgent)

	for key, values := range header {
		req.Header.Del(key)

		for _, val := range values {
			req.Header.Add(key, val)
		}
	}

	log.WithField("url", url).Debug("fetching")

	resp, err := f.client.Do(req)

	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	contents, err := ioutil.ReadAll(resp.Body)

	if err != nil {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	return contents, nil
}

// Header returns a header set carrying the given User-Agent.
func Header(userAgent string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)

	return h
}
