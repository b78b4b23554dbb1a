package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootFlagsFillConfigFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	t.Cleanup(func() {
		cfgFlags.DefaultTimezone = ""
		cfgFlags.TokenPath = ""
	})

	require.NoError(t, flags.Set("default-timezone", "Asia/Tokyo"))
	require.NoError(t, flags.Set("token-path", "/tmp/token.json"))

	assert.Equal(t, "Asia/Tokyo", cfgFlags.DefaultTimezone)
	assert.Equal(t, "/tmp/token.json", cfgFlags.TokenPath)
}
