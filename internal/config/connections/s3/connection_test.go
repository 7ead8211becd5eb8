package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostOnly(t *testing.T) {
	assert.Equal(t, "localhost:9000", hostOnly("http://localhost:9000"))
	assert.Equal(t, "s3.amazonaws.com", hostOnly("https://s3.amazonaws.com/"))
	assert.Equal(t, "minio:9000", hostOnly("minio:9000"))
}
