package swscan

import (
	"sort"
	"strings"
)

// Mode selects which kind of catalog product is wanted.
type Mode int

const (
	// Installer products are full macOS installers.
	Installer Mode = iota
	// Recovery products carry recovery partition payloads.
	Recovery
)

func (m Mode) String() string {
	if m == Recovery {
		return "recovery"
	}

	return "installer"
}

const (
	osInstallIdentifier     = "com.apple.mpkg.OSInstall"
	sharedSupportIdentifier = "com.apple.pkg.InstallAssistant"
)

var recoverySuffixes = []string{
	"RecoveryHDUpdate.pkg",
	"RecoveryHDMetaDmg.pkg",
}

// IsInstaller reports whether p is a macOS installer.
func IsInstaller(p *CatalogProduct) bool {
	return p.installAssistantID("OSInstall") == osInstallIdentifier ||
		strings.HasPrefix(p.installAssistantID("SharedSupport"), sharedSupportIdentifier)
}

// IsRecovery reports whether any package of p is a recovery image.
func IsRecovery(p *CatalogProduct) bool {
	if p == nil {
		return false
	}

	for _, pkg := range p.Packages {
		for _, suffix := range recoverySuffixes {
			if strings.HasSuffix(pkg.URL, suffix) {
				return true
			}
		}
	}

	return false
}

// Select returns the ids of catalog products matching mode, sorted.
func Select(c *Catalog, mode Mode) []string {
	var ids []string

	for id, p := range c.Products {
		var ok bool

		switch mode {
		case Recovery:
			ok = IsRecovery(p)
		default:
			ok = IsInstaller(p)
		}

		if ok {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}
