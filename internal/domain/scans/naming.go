package scans

import (
	"fmt"
	"regexp"
	"time"
)

// TimestampLayout is the timestamp used in artifact names.
const TimestampLayout = "20060102_150405"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeImage makes an image reference safe to use in a file name,
// e.g. "quay.io/ansible/ee:2.15" -> "quay.io_ansible_ee_2.15".
func SanitizeImage(image string) string {
	return unsafeName.ReplaceAllString(image, "_")
}

// ArtifactStem builds <sanitized-image>_<timestamp>_<scanner>.
func ArtifactStem(image string, at time.Time, scanner Scanner) string {
	return fmt.Sprintf("%s_%s_%s", SanitizeImage(image), at.UTC().Format(TimestampLayout), scanner)
}

// ArtifactName builds <sanitized-image>_<timestamp>_<scanner>.<ext>.
func ArtifactName(image string, at time.Time, scanner Scanner, ext string) string {
	return ArtifactStem(image, at, scanner) + "." + ext
}

// SummaryStem builds <sanitized-image>_<timestamp>_summary.
func SummaryStem(image string, at time.Time) string {
	return fmt.Sprintf("%s_%s_summary", SanitizeImage(image), at.UTC().Format(TimestampLayout))
}
