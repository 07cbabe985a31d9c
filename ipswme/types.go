package ipswme

import (
	"encoding/json"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/guregu/null.v3"
)

// TimeLayout is the layout api.ipsw.me uses for dates. Dates are always UTC.
const TimeLayout = "2006-01-02T15:04:05Z"

// Time is a nullable UTC timestamp.
type Time struct {
	null.Time
}

// NewTime wraps t, converted to UTC.
func NewTime(t time.Time) Time {
	return Time{null.TimeFrom(t.UTC())}
}

// UnmarshalJSON parses TimeLayout. null and "" leave the Time invalid.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s *string

	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == nil || *s == "" {
		t.Time = null.Time{}
		return nil
	}

	parsed, err := time.ParseInLocation(TimeLayout, *s, time.UTC)

	if err != nil {
		return err
	}

	t.Time = null.TimeFrom(parsed)

	return nil
}

// MarshalJSON writes the Time back in TimeLayout.
func (t Time) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(t.Time.Time.UTC().Format(TimeLayout))
}

// Filesize is a size in bytes, with a human readable rendering.
type Filesize struct {
	Bytes uint64
	Human string
}

// NewFilesize creates a Filesize from a byte count.
func NewFilesize(n uint64) Filesize {
	return Filesize{
		Bytes: n,
		Human: humanize.Bytes(n),
	}
}

func (f *Filesize) UnmarshalJSON(data []byte) error {
	var n uint64

	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	*f = NewFilesize(n)

	return nil
}

func (f Filesize) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Bytes)
}

func (f Filesize) String() string {
	return f.Human
}

// IPSW is a restore image for one device.
type IPSW struct {
	Identifier  string   `json:"identifier"`
	BuildID     string   `json:"buildid"`
	Version     string   `json:"version"`
	URL         string   `json:"url"`
	Filesize    Filesize `json:"filesize"`
	SHA1        string   `json:"sha1sum"`
	MD5         string   `json:"md5sum"`
	ReleaseDate Time     `json:"releasedate"`
	UploadDate  Time     `json:"uploaddate"`
	Signed      bool     `json:"signed"`
}

// OTA is an over-the-air update for one device.
type OTA struct {
	Identifier          string   `json:"identifier"`
	BuildID             string   `json:"buildid"`
	Version             string   `json:"version"`
	URL                 string   `json:"url"`
	Filesize            Filesize `json:"filesize"`
	PrerequisiteBuildID string   `json:"prerequisitebuildid"`
	PrerequisiteVersion string   `json:"prerequisiteversion"`
	ReleaseType         string   `json:"releasetype"`
	UploadDate          Time     `json:"uploaddate"`
	ReleaseDate         Time     `json:"releasedate"`
	Signed              bool     `json:"signed"`
}

// BaseDevice is a device known to api.ipsw.me.
type BaseDevice struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	BoardConfig string `json:"boardconfig"`
	Platform    string `json:"platform"`
	CPID        int    `json:"cpid"`
	BDID        int    `json:"bdid"`
}

// Device is a device and its IPSWs.
type Device struct {
	BaseDevice
	Firmwares []IPSW `json:"firmwares"`
}

// DeviceKeys is the known decryption key information for a build.
type DeviceKeys struct {
	Identifier           string        `json:"identifier"`
	BuildID              string        `json:"buildid"`
	CodeName             string        `json:"codename"`
	Baseband             string        `json:"baseband,omitempty"`
	UpdateRamdiskExists  bool          `json:"updateramdiskexists"`
	RestoreRamdiskExists bool          `json:"restoreramdiskexists"`
	Keys                 []FirmwareKey `json:"keys,omitempty"`
}

// FirmwareKey is a key/iv combo for an individual firmware file.
type FirmwareKey struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
	KBag     string `json:"kbag"`
	Key      string `json:"key"`
	IV       string `json:"iv"`
	Date     Time   `json:"date"`
}
