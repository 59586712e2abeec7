package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSealOrdersWorkloads(t *testing.T) {
	snapshot := NewClusterSnapshot()
	require.NoError(t, snapshot.AddNode(&Node{
		Name:     "pve1",
		Capacity: NewResourceVec(8, 32e9),
		Used:     NewResourceVec(4, 16e9),
	}))

	for _, vmid := range []int{301, 100, 205} {
		require.NoError(t, snapshot.AddWorkload(&Workload{
			VMID: vmid,
			Type: GuestQEMU,
			Node: "pve1",
			Used: NewResourceVec(1, 1e9),
		}))
	}
	snapshot.Seal()

	workloads := snapshot.Workloads["pve1"]
	require.Len(t, workloads, 3)
	assert.Equal(t, 100, workloads[0].VMID)
	assert.Equal(t, 205, workloads[1].VMID)
	assert.Equal(t, 301, workloads[2].VMID)

	assert.Equal(t, 3, snapshot.WorkloadCount())
}

func TestSnapshotRejectsInconsistentEntries(t *testing.T) {
	snapshot := NewClusterSnapshot()
	require.NoError(t, snapshot.AddNode(&Node{Name: "pve1"}))

	assert.Error(t, snapshot.AddNode(&Node{Name: "pve1"}), "duplicate node")
	assert.Error(t, snapshot.AddWorkload(&Workload{VMID: 100, Node: "ghost"}), "unknown host")
}

func TestActionStringIsReadable(t *testing.T) {
	action := &MigrationAction{
		VMID:        100,
		Type:        GuestLXC,
		Source:      "pve1",
		Target:      "pve2",
		SourceScore: 0.52,
		TargetScore: 0.47,
	}

	out := action.String()
	assert.Contains(t, out, "vmid: 100")
	assert.Contains(t, out, "source: pve1")
	assert.Contains(t, out, "target: pve2")
}
