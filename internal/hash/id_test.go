package hash

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	require.Equal(t, xxhash.Sum64String(""), ID(""))
	require.Equal(t, xxhash.Sum64String("bundle:0-100"), ID("bundle:0-100"))
	require.NotEqual(t, ID("bundle:0-100"), ID("bundle:0-101"))
}
