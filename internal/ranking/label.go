package ranking

import (
	"regexp"
	"strings"

	"github.com/banshee-data/aisradar/internal/tracks"
)

var (
	mmsiTagged   = regexp.MustCompile(`(?i)mmsi[:/](\d{9})`)
	mmsiTrailing = regexp.MustCompile(`\b(\d{9})$`)
)

// Label is the display name of a record: its name when set, otherwise a
// prettified id.
func Label(r tracks.KinematicRecord) string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return r.Name
	}
	return PrettyID(r.ID)
}

// PrettyID shortens Signal K vessel ids such as urn:mrn:imo:mmsi:244123456
// or mmsi:244123456 to "MMSI 244123456". Other ids are returned as is.
func PrettyID(id string) string {
	if m := mmsiTagged.FindStringSubmatch(id); m != nil {
		return "MMSI " + m[1]
	}
	if m := mmsiTrailing.FindStringSubmatch(id); m != nil {
		return "MMSI " + m[1]
	}
	return id
}
