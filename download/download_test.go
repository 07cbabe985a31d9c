package download

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cj123/applefw/fetch"
	"github.com/cj123/applefw/ipswme"
	"github.com/cj123/applefw/swscan"
)

var payload = []byte("not really an ipsw")

func payloadSHA1() string {
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

func newFileServer(t *testing.T, hits *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}

		if filepath.Base(r.URL.Path) == "missing.pkg" {
			http.NotFound(w, r)
			return
		}

		w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestDirectoryTemplate(t *testing.T) {
	d, err := New(Options{Directory: "/firmware/{{.Identifier}}/{{.BuildID}}"})
	require.NoError(t, err)

	dir, err := d.Directory(Target{Identifier: "iPhone12,1", BuildID: "18D52"})
	require.NoError(t, err)
	assert.Equal(t, "/firmware/iPhone12,1/18D52", dir)

	_, err = New(Options{Directory: "{{.Identifier"})
	assert.Error(t, err)
}

func TestIPSW(t *testing.T) {
	var hits int32

	srv := newFileServer(t, &hits)
	root := t.TempDir()

	d, err := New(Options{Directory: filepath.Join(root, "{{.Identifier}}")})
	require.NoError(t, err)

	fw := &ipswme.IPSW{
		Identifier: "iPhone12,1",
		BuildID:    "18D52",
		URL:        srv.URL + "/iPhone12,1_14.4_18D52_Restore.ipsw",
		Filesize:   ipswme.NewFilesize(uint64(len(payload))),
		SHA1:       payloadSHA1(),
	}

	path, err := d.IPSW(context.Background(), fw)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "iPhone12,1", "iPhone12,1_14.4_18D52_Restore.ipsw"), path)

	contents, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, contents)

	ok, err := Verify(path, fw.SHA1)
	require.NoError(t, err)
	assert.True(t, ok)

	// verified files aren't fetched again
	_, err = d.IPSW(context.Background(), fw)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestIPSWChecksumMismatch(t *testing.T) {
	srv := newFileServer(t, nil)

	d, err := New(Options{Directory: t.TempDir()})
	require.NoError(t, err)

	_, err = d.IPSW(context.Background(), &ipswme.IPSW{
		URL:  srv.URL + "/bad.ipsw",
		SHA1: "0000000000000000000000000000000000000000",
	})
	assert.Equal(t, ErrChecksum, err)
}

func TestProduct(t *testing.T) {
	srv := newFileServer(t, nil)
	root := t.TempDir()

	d, err := New(Options{Directory: filepath.Join(root, "{{.ProductID}}")})
	require.NoError(t, err)

	p := &swscan.Product{
		ID: "071-00002",
		Packages: []swscan.Package{
			{URL: srv.URL + "/InstallAssistant.pkg", Size: int64(len(payload)), Digest: payloadSHA1()},
			{URL: srv.URL + "/BuildManifest.plist", Size: int64(len(payload)), Digest: "not-a-sha1"},
		},
	}

	paths, err := d.Product(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "071-00002", "InstallAssistant.pkg"),
		filepath.Join(root, "071-00002", "BuildManifest.plist"),
	}, paths)

	_, err = d.Product(context.Background(), &swscan.Product{ID: "empty"})
	assert.Error(t, err)
}

func TestProductMissingPackage(t *testing.T) {
	srv := newFileServer(t, nil)

	d, err := New(Options{Directory: t.TempDir()})
	require.NoError(t, err)

	_, err = d.Product(context.Background(), &swscan.Product{
		ID:       "001-00003",
		Packages: []swscan.Package{{URL: srv.URL + "/missing.pkg"}},
	})

	var terr *fetch.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
}

func TestSHA1Digest(t *testing.T) {
	assert.Equal(t, "", sha1Digest(""))
	assert.Equal(t, "", sha1Digest("zz"+payloadSHA1()[2:]))
	assert.Equal(t, payloadSHA1(), sha1Digest(payloadSHA1()))
}

func TestProductInterruptedDownload(t *testing.T) {
	full := bytes.Repeat([]byte("x"), 100)

	var whole int32
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Length", strconv.Itoa(len(full)))

		if atomic.LoadInt32(&whole) == 0 {
			// the connection is dropped after a short body
			w.Write(full[:7])
			return
		}

		w.Write(full)
	}))
	defer srv.Close()

	root := t.TempDir()

	d, err := New(Options{Directory: root})
	require.NoError(t, err)

	p := &swscan.Product{
		ID:       "071-00002",
		Packages: []swscan.Package{{URL: srv.URL + "/Install.pkg", Size: int64(len(full))}},
	}

	_, err = d.Product(context.Background(), p)
	require.Error(t, err)

	location := filepath.Join(root, "Install.pkg")
	assert.NoFileExists(t, location)
	assert.NoFileExists(t, location+partSuffix)

	atomic.StoreInt32(&whole, 1)

	paths, err := d.Product(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{location}, paths)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	contents, err := ioutil.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, full, contents)
}

func TestProductReplacesShortFile(t *testing.T) {
	var hits int32

	srv := newFileServer(t, &hits)
	root := t.TempDir()

	location := filepath.Join(root, "InstallAssistant.pkg")
	require.NoError(t, ioutil.WriteFile(location, []byte("abc"), 0600))

	d, err := New(Options{Directory: root})
	require.NoError(t, err)

	_, err = d.Product(context.Background(), &swscan.Product{
		ID:       "071-00002",
		Packages: []swscan.Package{{URL: srv.URL + "/InstallAssistant.pkg", Size: int64(len(payload))}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	contents, err := ioutil.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, payload, contents)
}

func TestChecksumMismatchLeavesNothing(t *testing.T) {
	srv := newFileServer(t, nil)
	root := t.TempDir()

	d, err := New(Options{Directory: root})
	require.NoError(t, err)

	_, err = d.IPSW(context.Background(), &ipswme.IPSW{
		URL:  srv.URL + "/bad.ipsw",
		SHA1: "0000000000000000000000000000000000000000",
	})
	assert.Equal(t, ErrChecksum, err)
	assert.NoFileExists(t, filepath.Join(root, "bad.ipsw"))
	assert.NoFileExists(t, filepath.Join(root, "bad.ipsw"+partSuffix))
}
