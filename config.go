// Package applefw resolves Apple firmware metadata: iOS builds from api.ipsw.me and
// macOS installers from Apple's software update catalogs.
package applefw

import (
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cj123/applefw/download"
	"github.com/cj123/applefw/fetch"
	"github.com/cj123/applefw/ipswme"
	"github.com/cj123/applefw/swscan"
)

// Config holds the settings for every client in the module.
type Config struct {
	MinMacOS    int           `mapstructure:"min-macos"`
	MaxMacOS    int           `mapstructure:"max-macos"`
	CatalogHost string        `mapstructure:"catalog-host"`
	APIBase     string        `mapstructure:"api-base"`
	UserAgent   string        `mapstructure:"user-agent"`
	Seed        string        `mapstructure:"seed"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	DownloadDir string        `mapstructure:"download-dir"`
	Progress    bool          `mapstructure:"progress"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MinMacOS:    swscan.MinMacOS,
		MaxMacOS:    swscan.MaxMacOS,
		CatalogHost: swscan.DefaultCatalogHost,
		APIBase:     ipswme.DefaultBase,
		UserAgent:   "installer",
		Seed:        string(swscan.SeedPublicRelease),
		Concurrency: swscan.DefaultConcurrency,
		Timeout:     30 * time.Second,
		DownloadDir: "./",
	}
}

// LoadConfig reads configuration from path (any format viper understands) and
// APPLEFW_* environment variables, on top of DefaultConfig. path may be empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("min-macos", def.MinMacOS)
	v.SetDefault("max-macos", def.MaxMacOS)
	v.SetDefault("catalog-host", def.CatalogHost)
	v.SetDefault("api-base", def.APIBase)
	v.SetDefault("user-agent", def.UserAgent)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("download-dir", def.DownloadDir)
	v.SetDefault("progress", def.Progress)

	v.SetEnvPrefix("applefw")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "applefw: unable to read config %s", path)
		}
	}

	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "applefw: unable to decode config")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks the configuration without touching the network.
func (c *Config) Validate() error {
	if _, err := c.CatalogSeed(); err != nil {
		return err
	}

	if _, err := swscan.BuildURL(c.MinMacOS, c.MaxMacOS, swscan.SeedPublicRelease); err != nil {
		return err
	}

	if c.Concurrency < 0 {
		return errors.Errorf("applefw: concurrency must not be negative, got %d", c.Concurrency)
	}

	return nil
}

// CatalogSeed returns the configured seed.
func (c *Config) CatalogSeed() (swscan.Seed, error) {
	return swscan.ParseSeed(c.Seed)
}

// CatalogUserAgent resolves the user-agent setting. "installer" and
// "softwareupdate" select Apple's own clients, anything else is used verbatim.
func (c *Config) CatalogUserAgent() string {
	switch strings.ToLower(c.UserAgent) {
	case "", "installer":
		return fetch.InstallerUserAgent
	case "softwareupdate":
		return fetch.SoftwareUpdateUserAgent
	default:
		return c.UserAgent
	}
}

func (c *Config) httpClient() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

// Fetcher returns an HTTP fetcher using the configured timeout.
func (c *Config) Fetcher() *fetch.HTTPFetcher {
	return fetch.NewHTTPFetcher(c.httpClient(), "")
}

// Scanner returns a catalog scanner.
func (c *Config) Scanner() (*swscan.Scanner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return swscan.NewScanner(c.Fetcher(), swscan.Options{
		Store: swscan.StoreOptions{
			Host:       c.CatalogHost,
			UserAgent:  c.CatalogUserAgent(),
			MinVersion: c.MinMacOS,
			MaxVersion: c.MaxMacOS,
		},
		Concurrency: c.Concurrency,
	}), nil
}

// IPSWClient returns an api.ipsw.me client.
func (c *Config) IPSWClient() *ipswme.Client {
	return ipswme.NewClient(c.APIBase, c.Fetcher())
}

// downloadClient has no overall deadline since installers run to several
// gigabytes; Timeout bounds the wait for response headers instead.
func (c *Config) downloadClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: c.Timeout,
		},
	}
}

// Downloader returns a downloader saving into DownloadDir. Timeout applies to
// the wait for each response, not to the transfer itself.
func (c *Config) Downloader() (*download.Downloader, error) {
	return download.New(download.Options{
		Client:    c.downloadClient(),
		Directory: c.DownloadDir,
		Progress:  c.Progress,
	})
}
