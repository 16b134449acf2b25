package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Snapshot is one backup artifact.
type Snapshot struct {
	ID        string                     `json:"id"`
	Timestamp time.Time                  `json:"timestamp"`
	Sections  map[string]json.RawMessage `json:"sections"`
	// Error lists the sections that could not be fetched, if any.
	Error string `json:"error,omitempty"`
}

// emptySection stands in for a section whose fetch failed.
var emptySection = json.RawMessage(`[]`)

var artifactName = regexp.MustCompile(`^backup_\d{8}_\d{6}_\d{9}\.json(\.zst)?$`)

// IsArtifactName reports whether name looks like a backup artifact.
func IsArtifactName(name string) bool {
	return artifactName.MatchString(name)
}

// ArtifactName returns the artifact name for a snapshot taken at ts.
// Names sort lexicographically in chronological order.
func ArtifactName(ts time.Time, ext string) string {
	ts = ts.UTC()
	return fmt.Sprintf("backup_%s_%09d%s", ts.Format("20060102_150405"), ts.Nanosecond(), ext)
}

// compactSection validates raw as JSON and returns its compact form.
func compactSection(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
