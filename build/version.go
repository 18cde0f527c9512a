package build

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// ProtocolVersion identifies the wire-compatible version of a node or of
// this wallet core itself. It is used to gate the soft compatibility check
// the Synchronizer performs against a remote node's advertised version.
type ProtocolVersion struct {
	Version    uint32
	Prerelease [8]byte
}

// InvalidVersionError indicates a protocol version string could not be parsed.
type InvalidVersionError string

func (e InvalidVersionError) Error() string {
	if len(e) == 0 {
		return "invalid version: <nil>"
	}
	return "invalid version: " + string(e)
}

var nilPrerelease [8]byte

var versionReg = regexp.MustCompile(`^v?(\d{1,3})(?:\.(\d{1,3}))?(?:\.(\d{1,3}))?(?:-(.+))?$`)

// NewVersion creates a release protocol version with no prerelease tag.
func NewVersion(major, minor, patch uint8) ProtocolVersion {
	return NewPrereleaseVersion(major, minor, patch, "")
}

// NewPrereleaseVersion creates a protocol version carrying a prerelease tag.
func NewPrereleaseVersion(major, minor, patch uint8, prerelease string) ProtocolVersion {
	var v ProtocolVersion
	v.Version = (uint32(major) << 24) | (uint32(minor) << 16) | (uint32(patch) << 8)
	copy(v.Prerelease[:], prerelease)
	return v
}

// Parse parses a version string such as "1.2.3" or "1.2.3-rc1".
func Parse(raw string) (ProtocolVersion, error) {
	parts := versionReg.FindStringSubmatch(raw)
	if len(parts) != 5 {
		return ProtocolVersion{}, InvalidVersionError(raw)
	}
	major, _ := strconv.ParseUint(parts[1], 10, 8)
	minor, _ := strconv.ParseUint(parts[2], 10, 8)
	patch, _ := strconv.ParseUint(parts[3], 10, 8)
	return NewPrereleaseVersion(uint8(major), uint8(minor), uint8(patch), parts[4]), nil
}

// MustParse is Parse, panicking on error. Only safe for compile-time constants.
func MustParse(raw string) ProtocolVersion {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 the way bytes.Compare does, release versions
// sorting after prerelease versions of the same numeric version.
func (pv ProtocolVersion) Compare(other ProtocolVersion) int {
	if pv.Version < other.Version {
		return -1
	} else if pv.Version > other.Version {
		return 1
	}
	aPre := pv.Prerelease != nilPrerelease
	bPre := other.Prerelease != nilPrerelease
	if !aPre && bPre {
		return 1
	} else if aPre && !bPre {
		return -1
	}
	return 0
}

// String renders the version as "major.minor.patch[-prerelease]".
func (pv ProtocolVersion) String() string {
	str := fmt.Sprintf("%d.%d.%d",
		(pv.Version>>24)&0xFF,
		(pv.Version>>16)&0xFF,
		(pv.Version>>8)&0xFF,
	)
	if pv.Prerelease != nilPrerelease {
		str += "-" + string(trimZero(pv.Prerelease[:]))
	}
	return str
}

func trimZero(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return b[:i]
}

// MarshalJSON implements json.Marshaler.
func (pv ProtocolVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(pv.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (pv *ProtocolVersion) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return InvalidVersionError(string(b))
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*pv = v
	return nil
}

// Version is the protocol version of this build of the wallet core.
var Version = MustParse("1.0.0")
