package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rentfold/shadowwrite/internal/logging"
)

func TestMakeToWriter(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	log, err := logging.New().ToWriter(buff).Level("debug").Make()
	require.NoError(t, err)

	require.Equal(t, 0, buff.Len())
	log.Debug().Msg("shadow attempt")
	require.Contains(t, buff.String(), "shadow attempt")
}

func TestMakeToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rehearsal.log")
	log, err := logging.New().ToPath(path).Make()
	require.NoError(t, err)

	log.Info().Msg("journal flushed")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "journal flushed")
}

func TestMakeUnknownLevelDefaultsToInfo(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	log, err := logging.New().ToWriter(buff).Level("chatty").Make()
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	require.Equal(t, 0, buff.Len())

	log.Info().Msg("visible")
	require.Contains(t, buff.String(), "visible")
}
