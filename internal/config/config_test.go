package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("SNAPDUMP_MAX_STRING_SIZE")
	os.Unsetenv("SNAPDUMP_MAX_LZF_OUTPUT")

	opts, err := Load()
	require.NoError(t, err)
	require.EqualValues(t, 104857600, opts.MaxStringSize)
	require.EqualValues(t, 104857600, opts.MaxLZFOutput)
}

func TestLoad_OverrideFromEnv(t *testing.T) {
	t.Setenv("SNAPDUMP_MAX_STRING_SIZE", "1024")

	opts, err := Load()
	require.NoError(t, err)
	require.EqualValues(t, 1024, opts.MaxStringSize)
}
