package mpris

import (
	"time"

	"github.com/godbus/dbus/v5"
)

// Metadata is the subset of the MPRIS metadata map the relay uses
type Metadata struct {
	TrackID string
	Title   string
	Artists []string
	Album   string
	Length  time.Duration

	// HasTitle and HasArtists report whether the player sent the key at
	// all, even with an empty value
	HasTitle   bool
	HasArtists bool
}

// ParseMetadata extracts known xesam/mpris keys. Missing or mistyped keys
// are left empty; players disagree on types (artist may be a plain string,
// length may be signed or unsigned).
func ParseMetadata(m map[string]dbus.Variant) Metadata {
	var md Metadata

	if v, ok := m["mpris:trackid"]; ok {
		switch id := v.Value().(type) {
		case dbus.ObjectPath:
			md.TrackID = string(id)
		case string:
			md.TrackID = id
		}
	}

	if v, ok := m["xesam:title"]; ok {
		md.HasTitle = true
		md.Title, _ = v.Value().(string)
	}

	if v, ok := m["xesam:artist"]; ok {
		md.HasArtists = true
		switch artists := v.Value().(type) {
		case []string:
			md.Artists = artists
		case string:
			if artists != "" {
				md.Artists = []string{artists}
			}
		}
	}

	if v, ok := m["xesam:album"]; ok {
		md.Album, _ = v.Value().(string)
	}

	if v, ok := m["mpris:length"]; ok {
		switch us := v.Value().(type) {
		case int64:
			md.Length = time.Duration(us) * time.Microsecond
		case uint64:
			md.Length = time.Duration(us) * time.Microsecond
		case int32:
			md.Length = time.Duration(us) * time.Microsecond
		}
	}

	return md
}
