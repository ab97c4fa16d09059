// Package capability detects which Oracle features the connected
// database offers (version, edition, multitenant, options) and exposes
// them as a closed vocabulary of tags that tool descriptors can require.
package capability

import (
	"strconv"
	"strings"
	"time"
)

// Tag names one Oracle feature the server may require. The vocabulary is
/// closed: unknown tags always report false.
type Tag string

const (
	TagPDB          Tag = "pdb"
	TagAWR          Tag = "awr"
	TagPartitioning Tag = "partitioning"
	TagVector       Tag = "vector"
	TagJSON         Tag = "json"
	TagTDE          Tag = "tde"
	TagVault        Tag = "vault"
	TagParallel     Tag = "parallel"
)

// KnownTags lists the closed vocabulary, used by the registry to reject
// descriptors that require a tag the detector will never produce.
var KnownTags = map[Tag]bool{
	TagPDB:          true,
	TagAWR:          true,
	TagPartitioning: true,
	TagVector:       true,
	TagJSON:         true,
	TagTDE:          true,
	TagVault:        true,
	TagParallel:     true,
}

// Edition is the detected Oracle edition.
type Edition string

const (
	EditionXE Edition = "XE"
	EditionSE Edition = "SE"
	EditionEE Edition = "EE"
)

// Set is an immutable snapshot of detected capabilities. The detector
// never mutates a published Set; refreshes swap the pointer.
type Set struct {
	Version    string
	Edition    Edition
	IsCDB      bool
	Flags      map[Tag]bool
	DetectedAt time.Time
	// Degraded marks a set produced after a failed probe: all optional
	// flags false, ProbeError records why.
	Degraded   bool
	ProbeError string
}

// Supports reports whether the snapshot carries the tag.
func (s *Set) Supports(tag Tag) bool {
	if s == nil {
		return false
	}
	return s.Flags[tag]
}

// MajorVersion parses the leading component of Version; 0 when unknown.
func (s *Set) MajorVersion() int {
	if s == nil || s.Version == "" {
		return 0
	}
	head, _, _ := strings.Cut(s.Version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// Clone returns a deep copy so callers can hold the snapshot without
// aliasing the detector's state.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Flags = make(map[Tag]bool, len(s.Flags))
	for k, v := range s.Flags {
		clone.Flags[k] = v
	}
	return &clone
}

// degradedSet builds the all-false set cached after a probe failure.
func degradedSet(probeErr error) *Set {
	return &Set{
		Flags:      map[Tag]bool{},
		DetectedAt: time.Now(),
		Degraded:   true,
		ProbeError: probeErr.Error(),
	}
}

// versionFromBanner extracts "major.minor" from a V$VERSION banner line.
func versionFromBanner(banner string) string {
	fields := strings.Fields(banner)
	for _, f := range fields {
		head, rest, ok := strings.Cut(f, ".")
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(head); err != nil {
			continue
		}
		minor, _, _ := strings.Cut(rest, ".")
		if _, err := strconv.Atoi(minor); err != nil {
			continue
		}
		return head + "." + minor
	}
	return ""
}

// editionFromBanner classifies the edition named in a V$VERSION banner.
func editionFromBanner(banner string) Edition {
	upper := strings.ToUpper(banner)
	switch {
	case strings.Contains(upper, "EXPRESS"):
		return EditionXE
	case strings.Contains(upper, "ENTERPRISE"):
		return EditionEE
	case strings.Contains(upper, "STANDARD"):
		return EditionSE
	default:
		return EditionEE
	}
}
