package connector

import (
	"context"
	"sync"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/internal/model/testing_tool"
)

// ConstantConnector serves a fixed, deliberately lopsided snapshot and
// records migrate calls without side effects. It backs the "const"
// connector kind for exercising the engine without a cluster.
type ConstantConnector struct {
	mu       sync.Mutex
	migrated []*model.MigrationAction
}

func NewConstantConnector() *ConstantConnector {
	return &ConstantConnector{}
}

func (c *ConstantConnector) Collect(ctx context.Context) (*model.ClusterSnapshot, error) {
	return testing_tool.Snapshot(map[*testing_tool.NodeDesc][]testing_tool.WorkloadDesc{
		{Name: "pve1", CPU: 8, Mem: 32e9, UsedCPU: 6.8, UsedMem: 27e9}: {
			{VMID: 100, Type: model.GuestQEMU, CPU: 2.1, Mem: 8e9},
			{VMID: 101, Type: model.GuestQEMU, CPU: 1.4, Mem: 6e9},
			{VMID: 102, Type: model.GuestLXC, CPU: 0.6, Mem: 2e9},
		},
		{Name: "pve2", CPU: 8, Mem: 32e9, UsedCPU: 1.2, UsedMem: 5e9}: {
			{VMID: 110, Type: model.GuestLXC, CPU: 0.4, Mem: 1e9},
		},
		{Name: "pve3", CPU: 8, Mem: 32e9, UsedCPU: 3.5, UsedMem: 16e9}: {
			{VMID: 120, Type: model.GuestQEMU, CPU: 1.8, Mem: 9e9},
		},
	}), nil
}

func (c *ConstantConnector) Migrate(ctx context.Context, action *model.MigrationAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.migrated = append(c.migrated, action)
	log.Info().Msgf("pretending to migrate %d from %s to %s", action.VMID, action.Source, action.Target)

	return nil
}

// Migrated returns the actions recorded so far.
func (c *ConstantConnector) Migrated() []*model.MigrationAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*model.MigrationAction{}, c.migrated...)
}
