package swscan

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MinMacOS is the oldest major version included in catalog URLs (10.5, leopard).
	MinMacOS = 5
	// MaxMacOS is the newest major version included in catalog URLs (10.16, big sur).
	MaxMacOS = 16
)

// Seed is a software update release channel.
type Seed string

const (
	SeedPublicRelease Seed = "publicrelease"
	SeedPublicBeta    Seed = "publicseed"
	SeedDeveloperBeta Seed = "developerseed"
	SeedCustomerBeta  Seed = "customerseed"
)

var seedSuffixes = map[Seed]string{
	SeedPublicRelease: "",
	SeedPublicBeta:    "beta",
	SeedDeveloperBeta: "seed",
	SeedCustomerBeta:  "customerseed",
}

// ParseSeed converts a seed name (case-insensitive) into a Seed.
func ParseSeed(s string) (Seed, error) {
	seed := Seed(strings.ToLower(strings.TrimSpace(s)))

	if _, ok := seedSuffixes[seed]; !ok {
		return "", &ConfigurationError{Seed: s}
	}

	return seed, nil
}

// Suffix returns the catalog name suffix for the seed.
func (s Seed) Suffix() (string, error) {
	suffix, ok := seedSuffixes[Seed(strings.ToLower(string(s)))]

	if !ok {
		return "", &ConfigurationError{Seed: string(s)}
	}

	return suffix, nil
}

func (s Seed) String() string {
	return string(s)
}

// legacy releases are named in catalog URLs, everything else is "10.N".
var versionNames = map[int]string{
	8: "mountainlion",
	7: "lion",
	6: "snowleopard",
	5: "leopard",
}

// versionToken returns the catalog URL token for a macOS major version.
func versionToken(major int) string {
	if name, ok := versionNames[major]; ok {
		return name
	}

	return "10." + strconv.Itoa(major)
}

// BuildURL returns the catalog path for the version window [minVersion, maxVersion] and seed,
// e.g. "/index-10.16-10.15-...-leopard.merged-1.sucatalog".
func BuildURL(minVersion, maxVersion int, seed Seed) (string, error) {
	suffix, err := seed.Suffix()

	if err != nil {
		return "", err
	}

	if minVersion > maxVersion {
		return "", errors.Errorf("swscan: invalid version window %d-%d", minVersion, maxVersion)
	}

	tokens := make([]string, 0, maxVersion-minVersion+1)

	for v := maxVersion; v >= minVersion; v-- {
		tokens = append(tokens, versionToken(v))
	}

	path := "/index-" + strings.Join(tokens, "-") + ".merged-1.sucatalog"

	if suffix == "" {
		return path, nil
	}

	top := versionToken(maxVersion)

	return strings.Replace(path, top, top+suffix+"-"+top, 1), nil
}

var marketingNames = map[string]string{
	"tiger":         "10.4",
	"leopard":       "10.5",
	"snow leopard":  "10.6",
	"lion":          "10.7",
	"mountain lion": "10.8",
	"mavericks":     "10.9",
	"yosemite":      "10.10",
	"el capitan":    "10.11",
	"sierra":        "10.12",
	"high sierra":   "10.13",
	"mojave":        "10.14",
	"catalina":      "10.15",
	"big sur":       "10.16",
}

// MarketingVersion returns the version for a macOS marketing name ("high sierra" -> "10.13").
func MarketingVersion(name string) (string, bool) {
	v, ok := marketingNames[strings.ToLower(strings.TrimSpace(name))]

	return v, ok
}

// marketingName returns the marketing name for a dotted version, matching on
// the major component ("10.15.7" -> "catalina"). "11.x" is reported as big sur.
func marketingName(version string) string {
	parts := strings.SplitN(version, ".", 3)

	var major string

	switch {
	case len(parts) >= 2 && parts[0] == "10":
		major = parts[0] + "." + parts[1]
	case len(parts) >= 1 && parts[0] == "11":
		major = "10.16"
	default:
		return ""
	}

	for name, v := range marketingNames {
		if v == major {
			return name
		}
	}

	return ""
}
