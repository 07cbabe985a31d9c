// Package download saves IPSWs and macOS product packages to disk.
package download

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/apex/log"
	"github.com/cheggaaa/pb"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/cj123/applefw/fetch"
	"github.com/cj123/applefw/ipswme"
	"github.com/cj123/applefw/swscan"
)

// ErrChecksum is returned when a downloaded file doesn't match its expected SHA1.
var ErrChecksum = errors.New("download: checksum incorrect")

// Options configures a Downloader.
type Options struct {
	Client *http.Client
	// Directory is a text/template for the download directory, e.g. "./{{.Identifier}}/{{.BuildID}}".
	Directory string
	// Progress shows a progress bar on stdout for every file.
	Progress bool
}

// Target is what Directory templates are executed against.
type Target struct {
	Identifier string
	ProductID  string
	BuildID    string
	Version    string
	Title      string
}

// Downloader saves files into templated directories, verifying them where a checksum is known.
type Downloader struct {
	client    *http.Client
	directory *template.Template
	progress  bool
}

// New creates a Downloader.
func New(opts Options) (*Downloader, error) {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	if opts.Directory == "" {
		opts.Directory = "./"
	}

	t, err := template.New("directory").Parse(opts.Directory)

	if err != nil {
		return nil, errors.Wrap(err, "download: invalid directory template")
	}

	return &Downloader{
		client:    opts.Client,
		directory: t,
		progress:  opts.Progress,
	}, nil
}

// Directory renders the download directory for target.
func (d *Downloader) Directory(target Target) (string, error) {
	buf := new(bytes.Buffer)

	if err := d.directory.Execute(buf, target); err != nil {
		return "", errors.Wrap(err, "download: unable to render directory")
	}

	return buf.String(), nil
}

// IPSW downloads fw, returning the path it was saved to. An existing file which
// verifies is left alone.
func (d *Downloader) IPSW(ctx context.Context, fw *ipswme.IPSW) (string, error) {
	directory, err := d.Directory(Target{
		Identifier: fw.Identifier,
		BuildID:    fw.BuildID,
		Version:    fw.Version,
	})

	if err != nil {
		return "", err
	}

	return d.file(ctx, fw.URL, directory, fw.Filesize.Bytes, fw.SHA1)
}

// Product downloads every package of p. Packages must already be expanded.
func (d *Downloader) Product(ctx context.Context, p *swscan.Product) ([]string, error) {
	if len(p.Packages) == 0 {
		return nil, errors.Errorf("download: product %s has no packages", p.ID)
	}

	directory, err := d.Directory(Target{
		ProductID: p.ID,
		BuildID:   p.BuildID,
		Version:   p.Version,
		Title:     p.Title,
	})

	if err != nil {
		return nil, err
	}

	var paths []string

	for _, pkg := range p.Packages {
		var size uint64

		if pkg.Size > 0 {
			size = uint64(pkg.Size)
		}

		path, err := d.file(ctx, pkg.URL, directory, size, sha1Digest(pkg.Digest))

		if err != nil {
			return paths, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// sha1Digest returns digest if it looks like a SHA1 sum. Catalog digests aren't always SHA1.
func sha1Digest(digest string) string {
	if len(digest) != sha1.Size*2 {
		return ""
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return ""
	}

	return strings.ToLower(digest)
}

// partSuffix marks a file that is still being written.
const partSuffix = ".part"

func (d *Downloader) file(ctx context.Context, url, directory string, size uint64, sum string) (string, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return "", errors.Wrapf(err, "download: unable to create directory %s", directory)
	}

	location := filepath.Join(directory, filepath.Base(url))

	ctxLog := log.WithFields(log.Fields{
		"url":  url,
		"path": location,
	})

	if info, err := os.Stat(location); err == nil {
		ok, err := complete(location, info.Size(), size, sum)

		if err != nil {
			return "", err
		}

		if ok {
			ctxLog.Info("already downloaded")
			return location, nil
		}

		ctxLog.Warn("existing file is incomplete or did not verify, downloading again")
	}

	ctxLog.WithField("size", humanize.Bytes(size)).Info("downloading")

	var progress io.Writer = ioutil.Discard
	var bar *pb.ProgressBar

	if d.progress && size > 0 {
		bar = pb.New(int(size)).SetUnits(pb.U_BYTES)
		bar.Start()
		progress = bar
	}

	part := location + partSuffix

	checksum, err := d.download(ctx, url, part, progress)

	if bar != nil {
		bar.Finish()
	}

	if err != nil {
		os.Remove(part)
		return "", err
	}

	if sum != "" && checksum != sum {
		os.Remove(part)
		ctxLog.WithFields(log.Fields{"wanted": sum, "got": checksum}).Error("failed checksum")
		return "", ErrChecksum
	}

	if err := os.Rename(part, location); err != nil {
		os.Remove(part)
		return "", errors.Wrapf(err, "download: unable to move %s into place", part)
	}

	return location, nil
}

// complete reports whether an existing file can be kept: its size must match
// when the size is known, and its SHA1 when the sum is known.
func complete(location string, onDisk int64, size uint64, sum string) (bool, error) {
	if size > 0 && uint64(onDisk) != size {
		return false, nil
	}

	if sum == "" {
		return true, nil
	}

	return Verify(location, sum)
}

// download saves url to location and returns the SHA1 of what was written.
func (d *Downloader) download(ctx context.Context, url, location string, progress io.Writer) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)

	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req.WithContext(ctx))

	if err != nil {
		return "", &fetch.TransportError{URL: url, Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &fetch.TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	out, err := os.Create(location)

	if err != nil {
		return "", err
	}

	checksum, err := sha1Copy(io.MultiWriter(out, progress), resp.Body)

	if cerr := out.Close(); err == nil && cerr != nil {
		return "", cerr
	}

	if err != nil {
		return "", &fetch.TransportError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	return checksum, nil
}

// sha1Copy copies src to dst, returning the hex SHA1 of everything copied.
func sha1Copy(dst io.Writer, src io.Reader) (string, error) {
	h := sha1.New()

	if _, err := io.Copy(io.MultiWriter(dst, h), src); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the file at location has the given SHA1 sum.
func Verify(location string, expectedSHA1sum string) (bool, error) {
	file, err := os.Open(location)

	if err != nil {
		return false, err
	}

	defer file.Close()

	checksum, err := sha1Copy(ioutil.Discard, file)

	if err != nil {
		return false, err
	}

	return strings.EqualFold(expectedSHA1sum, checksum), nil
}
