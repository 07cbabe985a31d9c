// Package ipswme is a client for the api.ipsw.me v4 API.
package ipswme

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/cj123/applefw/fetch"
)

// DefaultBase is the api.ipsw.me v4 API base.
const DefaultBase = "https://api.ipsw.me/v4"

// Client is an api.ipsw.me client. Responses are decoded into immutable records.
type Client struct {
	fetcher fetch.Fetcher
	base    string
}

// NewClient creates a Client. If f == nil, an HTTPFetcher with default settings is used.
func NewClient(base string, f fetch.Fetcher) *Client {
	if base == "" {
		base = DefaultBase
	}

	if f == nil {
		f = fetch.NewHTTPFetcher(nil, "")
	}

	return &Client{
		fetcher: f,
		base:    base,
	}
}

var jsonHeader = http.Header{"Accept": []string{"application/json"}}

func (c *Client) makeRequest(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	return c.fetcher.Fetch(ctx, c.base+endpoint, header)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, output interface{}) error {
	body, err := c.makeRequest(ctx, endpoint, jsonHeader)

	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, output); err != nil {
		return errors.Wrapf(err, "ipswme: unable to decode %s", endpoint)
	}

	return nil
}

// Devices lists every device.
func (c *Client) Devices(ctx context.Context) ([]BaseDevice, error) {
	var devices []BaseDevice

	err := c.getJSON(ctx, "/devices", &devices)

	return devices, err
}

// Device returns a device and all of its IPSWs.
func (c *Client) Device(ctx context.Context, identifier string) (*Device, error) {
	var device *Device

	err := c.getJSON(ctx, "/device/"+identifier+"?type=ipsw", &device)

	return device, err
}

// IPSW looks up a single build for a device.
func (c *Client) IPSW(ctx context.Context, identifier, buildid string) (*IPSW, error) {
	var fw *IPSW

	err := c.getJSON(ctx, fmt.Sprintf("/ipsw/%s/%s", identifier, buildid), &fw)

	return fw, err
}

// IPSWsForVersion lists the IPSWs of every device for an iOS version.
func (c *Client) IPSWsForVersion(ctx context.Context, version string) ([]IPSW, error) {
	var fws []IPSW

	err := c.getJSON(ctx, "/ipsw/"+version, &fws)

	return fws, err
}

// DeviceKeys lists the key information known for a device.
func (c *Client) DeviceKeys(ctx context.Context, identifier string) ([]DeviceKeys, error) {
	var keys []DeviceKeys

	err := c.getJSON(ctx, "/keys/device/"+identifier, &keys)

	return keys, err
}

// FirmwareKeys returns the keys for a single build.
func (c *Client) FirmwareKeys(ctx context.Context, identifier, buildid string) (*DeviceKeys, error) {
	var keys *DeviceKeys

	err := c.getJSON(ctx, fmt.Sprintf("/keys/ipsw/%s/%s", identifier, buildid), &keys)

	return keys, err
}

// OTA looks up a single OTA build for a device.
func (c *Client) OTA(ctx context.Context, identifier, buildid string) (*OTA, error) {
	var ota *OTA

	err := c.getJSON(ctx, fmt.Sprintf("/ota/%s/%s", identifier, buildid), &ota)

	return ota, err
}

// OTAsForVersion lists the OTAs of every device for an iOS version.
func (c *Client) OTAsForVersion(ctx context.Context, version string) ([]OTA, error) {
	var otas []OTA

	err := c.getJSON(ctx, "/ota/"+version, &otas)

	return otas, err
}

// OTADocumentation returns the release notes of an OTA, as served (HTML).
func (c *Client) OTADocumentation(ctx context.Context, identifier, version string) (string, error) {
	body, err := c.makeRequest(ctx, fmt.Sprintf("/ota/documentation/%s/%s", identifier, version), nil)

	if err != nil {
		return "", err
	}

	return string(body), nil
}
