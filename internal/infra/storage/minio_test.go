package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("acme/ee_20240301_103000_grype.json"))
	assert.Equal(t, "application/json", contentType("acme/ee_20240301_103000_grype.sarif"))
	assert.Equal(t, "text/plain; charset=utf-8", contentType("acme/ee_20240301_103000_grype.txt"))
	assert.Equal(t, "application/octet-stream", contentType("acme/blob"))
}
