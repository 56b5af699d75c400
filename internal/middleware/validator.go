package middleware

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// ErrInvalidInput wraps every validation failure so handlers can answer 400.
var ErrInvalidInput = errors.New("invalid input")

var (
	// [registry[:port]/]name[/name...][:tag][@sha256:digest]
	imagePattern  = regexp.MustCompile(`^([a-z0-9.-]+(:[0-9]+)?/)?[a-z0-9]+([._-][a-z0-9]+)*(/[a-z0-9]+([._-][a-z0-9]+)*)*(:[a-z0-9._-]+)?(@sha256:[a-f0-9]{64})?$`)
	tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidateImageName validates Docker image references
func ValidateImageName(image string) error {
	if image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidInput)
	}

	// Block dangerous patterns
	dangerous := []string{"..", "$(", "`", "&", "|", ";", "\n", "\r", " "}
	for _, d := range dangerous {
		if strings.Contains(image, d) {
			return fmt.Errorf("%w: invalid characters in image name", ErrInvalidInput)
		}
	}
	if len(image) > 512 || !imagePattern.MatchString(strings.ToLower(image)) {
		return fmt.Errorf("%w: invalid Docker image name format", ErrInvalidInput)
	}
	return nil
}

// ValidateScanners parses scanner names; at least one is required
func ValidateScanners(names []string) ([]scans.Scanner, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one scanner is required", ErrInvalidInput)
	}
	out := make([]scans.Scanner, 0, len(names))
	seen := map[scans.Scanner]bool{}
	for _, n := range names {
		s, err := scans.ParseScanner(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

// ValidatePolicy checks the fail-on threshold
func ValidatePolicy(p string) error {
	if _, err := gate.ParsePolicy(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("%w: tenant ID cannot be empty", ErrInvalidInput)
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("%w: invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)", ErrInvalidInput)
	}
	return nil
}

// ValidateID validates evaluation and job IDs (UUIDs)
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid id %q", ErrInvalidInput, id)
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
