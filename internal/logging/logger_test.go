package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/club-booking-client/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "warn", "PROD")

	log.Info().Msg("dropped")
	log.Warn().Str("course", "12").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "kept", line["message"])
	require.Equal(t, "12", line["course"])
	require.Equal(t, "warn", line["level"])
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "loud", "PROD")
	log.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
	log.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "***", logging.MaskToken("short"))
	require.Equal(t, "eyJhbGciOi...", logging.MaskToken("eyJhbGciOiJIUzI1NiJ9.payload.sig"))
}
