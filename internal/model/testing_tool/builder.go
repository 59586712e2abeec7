// Because it is a testing package, no errors are returned,
// all problems cause a panic.

package testing_tool

import (
	"fmt"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
)

type NodeDesc struct {
	Name    string
	CPU     float64
	Mem     float64
	UsedCPU float64
	UsedMem float64
}

type WorkloadDesc struct {
	VMID int
	Type model.GuestType
	CPU  float64
	Mem  float64
}

// Snapshot assembles a sealed cluster snapshot from node descriptions and
// the workloads running on each. Node utilization is taken from the node
// description, not summed from guests, matching how the host metrics and
// per-guest metrics arrive separately from the cluster API.
func Snapshot(nodes map[*NodeDesc][]WorkloadDesc) *model.ClusterSnapshot {
	snapshot := model.NewClusterSnapshot()

	seenVMIDs := make(map[int]bool)
	for nodeDesc, workloads := range nodes {
		node := &model.Node{
			Name:     nodeDesc.Name,
			Capacity: model.NewResourceVec(nodeDesc.CPU, nodeDesc.Mem),
			Used:     model.NewResourceVec(nodeDesc.UsedCPU, nodeDesc.UsedMem),
			Eligible: true,
		}
		if err := snapshot.AddNode(node); err != nil {
			panic(err)
		}

		for _, workloadDesc := range workloads {
			if seenVMIDs[workloadDesc.VMID] {
				panic(fmt.Sprintf("vmid %d described twice", workloadDesc.VMID))
			}
			seenVMIDs[workloadDesc.VMID] = true

			guestType := workloadDesc.Type
			if guestType == "" {
				guestType = model.GuestQEMU
			}

			workload := &model.Workload{
				VMID:     workloadDesc.VMID,
				Name:     fmt.Sprintf("guest-%d", workloadDesc.VMID),
				Type:     guestType,
				Node:     nodeDesc.Name,
				Used:     model.NewResourceVec(workloadDesc.CPU, workloadDesc.Mem),
				Eligible: true,
			}
			if err := snapshot.AddWorkload(workload); err != nil {
				panic(err)
			}
		}
	}

	snapshot.Seal()

	return snapshot
}
