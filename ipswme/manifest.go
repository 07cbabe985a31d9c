package ipswme

import (
	"github.com/cj123/go-ipsw"
	"github.com/pkg/errors"
)

// BuildManifest reads BuildManifest.plist from the remote IPSW without downloading the whole file.
func (fw *IPSW) BuildManifest() (*ipsw.BuildManifest, error) {
	if fw.URL == "" {
		return nil, errors.Errorf("ipswme: %s %s has no url", fw.Identifier, fw.BuildID)
	}

	manifest, err := ipsw.NewIPSW(fw.Identifier, fw.BuildID, fw.URL).BuildManifest()

	if err != nil {
		return nil, errors.Wrapf(err, "ipswme: unable to read build manifest of %s", fw.URL)
	}

	return manifest, nil
}

// BuildManifest reads the AssetData BuildManifest.plist from the remote OTA zip.
func (o *OTA) BuildManifest() (*ipsw.OTABuildManifest, error) {
	if o.URL == "" {
		return nil, errors.Errorf("ipswme: %s %s has no url", o.Identifier, o.BuildID)
	}

	manifest, err := ipsw.NewOTAZip(o.Identifier, o.BuildID, o.URL).BuildManifest()

	if err != nil {
		return nil, errors.Wrapf(err, "ipswme: unable to read build manifest of %s", o.URL)
	}

	return manifest, nil
}
