package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(r, "line %d\n", i)
	}
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, r.Recent(10))
	assert.Equal(t, []string{"line 4"}, r.Recent(1))
}

func TestSetupWritesFileAndRing(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "logs", "camroll.log")
	ring := NewRing(10)
	closer, err := Setup("debug", path, ring)
	require.NoError(t, err)

	log.Info().Str("id", "abc").Msg("Photo captured")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Photo captured"`)
	assert.Contains(t, string(data), `"id":"abc"`)

	lines := ring.Recent(1)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Photo captured")
	assert.Contains(t, lines[0], "id=abc")
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	closer, err := Setup("chatty", filepath.Join(t.TempDir(), "x.log"), nil)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
