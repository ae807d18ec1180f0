package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnavailableURI is the sentinel value stored in file tags and backups for
// tracks confirmed to be absent from the remote service. It distinguishes
// "searched and not found anywhere" from "never searched".
const UnavailableURI = "spotify:track:unavailable"

// URIState enumerates the three resolution states a local track can be in.
type URIState int

const (
	// URIUnresolved means the track has not been matched yet.
	URIUnresolved URIState = iota
	// URIMissing means the track was searched and confirmed absent remotely.
	URIMissing
	// URIResolved means the track has a remote URI assigned.
	URIResolved
)

// URI is the tri-state remote identifier attached to a local track.
// The zero value is the unresolved state.
type URI struct {
	state URIState
	value string
}

// ResolvedURI returns a URI in the resolved state carrying the given value.
func ResolvedURI(value string) URI {
	return URI{state: URIResolved, value: value}
}

// MissingURI returns a URI marked as confirmed absent on the remote service.
func MissingURI() URI {
	return URI{state: URIMissing}
}

// UnresolvedURI returns a URI in the unresolved (never searched) state.
func UnresolvedURI() URI {
	return URI{}
}

// State returns the resolution state.
func (u URI) State() URIState { return u.state }

// Value returns the remote identifier. Empty unless the URI is resolved.
func (u URI) Value() string { return u.value }

// IsResolved reports whether a remote identifier is assigned.
func (u URI) IsResolved() bool { return u.state == URIResolved }

// IsMissing reports whether the track is confirmed absent remotely.
func (u URI) IsMissing() bool { return u.state == URIMissing }

// IsUnresolved reports whether the track has never been matched.
func (u URI) IsUnresolved() bool { return u.state == URIUnresolved }

// TagValue returns the string persisted to file tags: the URI itself when
// resolved, the unavailable sentinel when missing, and "" when unresolved
// (meaning the tag should be absent).
func (u URI) TagValue() string {
	switch u.state {
	case URIResolved:
		return u.value
	case URIMissing:
		return UnavailableURI
	default:
		return ""
	}
}

// ParseTagValue converts a tag value back into a URI. An empty value means
// the tag was absent, i.e. unresolved.
func ParseTagValue(value string) URI {
	switch value {
	case "":
		return UnresolvedURI()
	case UnavailableURI:
		return MissingURI()
	default:
		return ResolvedURI(value)
	}
}

func (u URI) String() string {
	switch u.state {
	case URIResolved:
		return u.value
	case URIMissing:
		return "<unavailable>"
	default:
		return "<unresolved>"
	}
}

// MarshalJSON encodes the tri-state exactly: a resolved URI as its string,
// a missing URI as the unavailable sentinel string, and unresolved as null.
func (u URI) MarshalJSON() ([]byte, error) {
	switch u.state {
	case URIResolved:
		return json.Marshal(u.value)
	case URIMissing:
		return json.Marshal(UnavailableURI)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null (unresolved), the unavailable sentinel or any
// other string (resolved). The JSON literal false is also accepted as the
// missing state for compatibility with older backup files.
func (u *URI) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*u = UnresolvedURI()
		return nil
	case bytes.Equal(data, []byte("false")):
		*u = MissingURI()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid URI value %s: %w", data, err)
	}
	*u = ParseTagValue(s)
	return nil
}
