package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_ReturnsValidUUIDString(t *testing.T) {
	id := NewID()
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestNewID_ReturnsUniqueValues(t *testing.T) {
	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, seen[id], "duplicate ID generated: %s", id)
		seen[id] = true
	}
}

func TestRandomString_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.Regexp(t, `^[a-z0-9]{4}$`, RandomString(4))
	}
	assert.Len(t, RandomString(10), 10)
}

func TestUniqueName_FreeNameUnchanged(t *testing.T) {
	name, err := UniqueName(context.Background(), "web", func(context.Context, string) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "web", name)
}

func TestUniqueName_CollisionGetsSuffix(t *testing.T) {
	existing := map[string]bool{"web": true}
	name, err := UniqueName(context.Background(), "web", func(_ context.Context, n string) (bool, error) {
		return existing[n], nil
	})
	require.NoError(t, err)
	assert.Regexp(t, `^web-[a-z0-9]{4}$`, name)
}

func TestUniqueName_LookupError(t *testing.T) {
	_, err := UniqueName(context.Background(), "web", func(context.Context, string) (bool, error) {
		return false, errors.New("db down")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestUniqueName_Exhausted(t *testing.T) {
	_, err := UniqueName(context.Background(), "web", func(context.Context, string) (bool, error) {
		return true, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no free name")
}
