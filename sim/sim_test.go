package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartConvergesScenario(t *testing.T) {
	scenario := []byte(`{
		"rounds": 5,
		"tolerance": 0.1,
		"percent_cpu": 1.0,
		"percent_mem": 0.0,
		"max_migrations": 2,
		"nodes": [
			{"name": "hot", "cpu": 10, "mem": 100, "used_cpu": 9, "used_mem": 50,
			 "workloads": [{"vmid": 100, "type": "qemu", "cpu": 4, "mem": 10}]},
			{"name": "cold", "cpu": 10, "mem": 100, "used_cpu": 1, "used_mem": 50}
		]
	}`)

	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, scenario, 0644))

	require.NoError(t, Start(path))

	// The single corrective move lands in round one; the next round sees
	// a balanced cluster and stops.
	require.GreaterOrEqual(t, len(report.Moves), 2)
	assert.Equal(t, 1, report.Moves[0])
	assert.Equal(t, 0, report.Moves[1])
	assert.Less(t, report.Spread[1], report.Spread[0])
}

func TestStartRejectsBadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"percent_cpu": 0.9}`), 0644))

	assert.Error(t, Start(path))
}
