package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/internal/model/testing_tool"
)

type stubConnector struct {
	collectErr error

	mu       sync.Mutex
	collects int
	migrated []int
}

func (s *stubConnector) Collect(ctx context.Context) (*model.ClusterSnapshot, error) {
	s.mu.Lock()
	s.collects++
	s.mu.Unlock()

	if s.collectErr != nil {
		return nil, s.collectErr
	}

	// One clearly hot node, one clearly cold one.
	return testing_tool.Snapshot(map[*testing_tool.NodeDesc][]testing_tool.WorkloadDesc{
		{Name: "hot", CPU: 10, Mem: 100, UsedCPU: 9, UsedMem: 90}: {
			{VMID: 100, CPU: 4, Mem: 40},
		},
		{Name: "cold", CPU: 10, Mem: 100, UsedCPU: 1, UsedMem: 10}: nil,
	}), nil
}

func (s *stubConnector) Migrate(ctx context.Context, action *model.MigrationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.migrated = append(s.migrated, action.VMID)

	return nil
}

func testConfig() config.Config {
	cfg := config.New()
	cfg.Connector = "const"
	cfg.Tolerance = 0.1

	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.PercentCPU = 0.9

	stub := &stubConnector{}
	_, err := New(cfg, stub)

	require.Error(t, err)
	// A configuration error is surfaced before anything is read.
	assert.Zero(t, stub.collects)
}

func TestRunOnceDryRunNeverMigrates(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true

	stub := &stubConnector{}
	sched, err := New(cfg, stub)
	require.NoError(t, err)

	report, err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.False(t, report.Balanced)
	require.NotNil(t, report.Plan)
	assert.NotEmpty(t, report.Plan.Actions)

	assert.Empty(t, stub.migrated, "dry run must not invoke migrate")
	assert.Empty(t, report.Results)
}

func TestRunOnceExecutesPlan(t *testing.T) {
	stub := &stubConnector{}
	sched, err := New(testConfig(), stub)
	require.NoError(t, err)

	report, err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Plan)
	assert.Len(t, stub.migrated, len(report.Plan.Actions))
	assert.Equal(t, len(report.Plan.Actions), report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.NotEmpty(t, report.RunID)
}

func TestRunOnceCollectionErrorIsFatal(t *testing.T) {
	stub := &stubConnector{collectErr: fmt.Errorf("cluster unreachable")}
	sched, err := New(testConfig(), stub)
	require.NoError(t, err)

	report, err := sched.RunOnce(context.Background())

	require.Error(t, err)
	assert.Nil(t, report)
	assert.Empty(t, stub.migrated)
}

func TestRunOnceReportsBalancedCluster(t *testing.T) {
	cfg := testConfig()
	cfg.Tolerance = 0.9

	stub := &stubConnector{}
	sched, err := New(cfg, stub)
	require.NoError(t, err)

	report, err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Balanced)
	assert.Nil(t, report.Plan)
	assert.Empty(t, stub.migrated)
}
