package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetVerboseReachesEarlyCopies(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Packages capture their logger at init, long before flags are
	// parsed. Verbose mode has to take effect on those copies too.
	var buf bytes.Buffer
	early := Get().Output(&buf)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	early.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	SetVerbose()

	early.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
