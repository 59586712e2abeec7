package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/statistics"
)

type fakeConnector struct {
	delay     time.Duration
	failVMIDs map[int]bool
	mu        sync.Mutex
	inFlight  int64
	maxSeen   int64
	calls     []int
}

func (f *fakeConnector) Collect(ctx context.Context) (*model.ClusterSnapshot, error) {
	return model.NewClusterSnapshot(), nil
}

func (f *fakeConnector) Migrate(ctx context.Context, action *model.MigrationAction) error {
	current := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)

	f.mu.Lock()
	if current > f.maxSeen {
		f.maxSeen = current
	}
	f.calls = append(f.calls, action.VMID)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.failVMIDs[action.VMID] {
		return fmt.Errorf("migration of %d rejected", action.VMID)
	}

	return nil
}

func planOf(vmids ...int) *model.MigrationPlan {
	plan := &model.MigrationPlan{}
	for _, vmid := range vmids {
		plan.Actions = append(plan.Actions, &model.MigrationAction{
			VMID:   vmid,
			Type:   model.GuestQEMU,
			Source: "a",
			Target: "b",
		})
	}

	return plan
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	statistics.Init()

	fake := &fakeConnector{delay: 20 * time.Millisecond}
	results := New(fake, 2).Execute(context.Background(), planOf(1, 2, 3, 4, 5, 6))

	require.Len(t, results, 6)
	for _, result := range results {
		assert.True(t, result.Accepted)
	}
	assert.LessOrEqual(t, fake.maxSeen, int64(2))
	assert.Equal(t, 6, statistics.Get("migrations_dispatched"))
	assert.Equal(t, 6, statistics.Get("migrations_accepted"))
}

func TestExecuteFailureIsLocal(t *testing.T) {
	statistics.Init()

	fake := &fakeConnector{failVMIDs: map[int]bool{200: true}}
	results := New(fake, 5).Execute(context.Background(), planOf(100, 200, 300))

	require.Len(t, results, 3)

	// Results stay in plan order regardless of dispatch interleaving.
	assert.Equal(t, 100, results[0].Action.VMID)
	assert.Equal(t, 200, results[1].Action.VMID)
	assert.Equal(t, 300, results[2].Action.VMID)

	assert.True(t, results[0].Accepted)
	assert.False(t, results[1].Accepted)
	assert.Contains(t, results[1].Error, "rejected")
	assert.True(t, results[2].Accepted, "a sibling failure must not cancel this dispatch")

	assert.Equal(t, 2, statistics.Get("migrations_accepted"))
	assert.Equal(t, 1, statistics.Get("migrations_rejected"))
}

func TestExecuteEmptyPlan(t *testing.T) {
	statistics.Init()

	fake := &fakeConnector{}
	results := New(fake, 5).Execute(context.Background(), &model.MigrationPlan{})

	assert.Empty(t, results)
	assert.Empty(t, fake.calls)
}
