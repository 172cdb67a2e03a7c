package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNamespacesParts(t *testing.T) {
	assert.Equal(t, "halaqa:jobs", Key("jobs"))
	assert.Equal(t, "halaqa:lock:hadith", Key("lock", "hadith"))
}

func TestNilRedisIsUnhealthyAndClosable(t *testing.T) {
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}
