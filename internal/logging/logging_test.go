package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	l := Component("agent")
	l.Info().Str("symbol", "CAT").Msg("decision")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "agent", entry["component"])
	assert.Equal(t, "CAT", entry["symbol"])
	assert.Equal(t, "decision", entry["message"])
}

func TestSetupWriter_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "shouting", "json")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestCtx_CarriesCycleID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).With().Str("component", "trading").Logger()

	lg := Ctx(WithCycle(context.Background(), "ab12cd34"), base)
	lg.Info().Msg("trade filled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trading", entry["component"])
	assert.Equal(t, "ab12cd34", entry["cycle"])

	buf.Reset()
	plain := Ctx(context.Background(), base)
	plain.Info().Msg("startup")
	assert.NotContains(t, buf.String(), `"cycle"`)
}
