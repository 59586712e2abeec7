package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/logging"
)

var log = logging.Get()

// Connector is the narrow boundary to the cluster API: one read of the
// whole cluster and one migrate call per planned action. Backends (HTTPS,
// SSH, constant fixture) are swappable behind it.
type Connector interface {
	Collect(ctx context.Context) (*model.ClusterSnapshot, error)
	Migrate(ctx context.Context, action *model.MigrationAction) error
}

// nodeStatus is the PVE node listing payload, identical over the HTTP API
// and pvesh. The cpu field is a fraction of maxcpu; mem figures are bytes.
type nodeStatus struct {
	Node   string  `json:"node"`
	Status string  `json:"status"`
	CPU    float64 `json:"cpu"`
	MaxCPU float64 `json:"maxcpu"`
	Mem    float64 `json:"mem"`
	MaxMem float64 `json:"maxmem"`
}

// guestStatus is the per-node qemu/lxc listing payload. VMID arrives as a
// number from qemu endpoints and as a string from some lxc versions, hence
// json.Number.
type guestStatus struct {
	VMID     json.Number `json:"vmid"`
	Name     string      `json:"name"`
	Status   string      `json:"status"`
	CPU      float64     `json:"cpu"`
	CPUs     float64     `json:"cpus"`
	Mem      float64     `json:"mem"`
	Template int         `json:"template"`
}

// buildSnapshot turns the raw listings into a sealed snapshot. Only online
// nodes and running, non-template guests are captured; node utilization
// comes from the host metrics, not from summing guests.
func buildSnapshot(nodes []nodeStatus, guests map[string]map[model.GuestType][]guestStatus) (*model.ClusterSnapshot, error) {
	snapshot := model.NewClusterSnapshot()

	for _, n := range nodes {
		if n.Status != "online" {
			log.Debug().Msgf("skipping node %s with status %s", n.Node, n.Status)
			continue
		}

		err := snapshot.AddNode(&model.Node{
			Name:     n.Node,
			Capacity: model.NewResourceVec(n.MaxCPU, n.MaxMem),
			Used:     model.NewResourceVec(n.CPU*n.MaxCPU, n.Mem),
		})
		if err != nil {
			return nil, err
		}
	}

	for nodeName, byType := range guests {
		if _, ok := snapshot.Nodes[nodeName]; !ok {
			continue
		}

		for guestType, listed := range byType {
			for _, g := range listed {
				if g.Status != "running" || g.Template != 0 {
					continue
				}

				vmid, err := g.VMID.Int64()
				if err != nil {
					return nil, fmt.Errorf("bad vmid %q on node %s: %w", g.VMID, nodeName, err)
				}

				err = snapshot.AddWorkload(&model.Workload{
					VMID: int(vmid),
					Name: g.Name,
					Type: guestType,
					Node: nodeName,
					Used: model.NewResourceVec(g.CPU*g.CPUs, g.Mem),
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}

	snapshot.Seal()

	return snapshot, nil
}
