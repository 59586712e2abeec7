package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/padthaitofuhot/pve-cslb/internal/connector"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/logging"
	"github.com/padthaitofuhot/pve-cslb/statistics"
)

var log = logging.Get()

// Executor dispatches a migration plan with bounded concurrency. Each
// action is fired independently: a rejected migration is recorded and
// never cancels or rolls back its siblings. Actions target disjoint VMIDs
// by construction, so no two dispatches can race on the same workload.
type Executor struct {
	connector   connector.Connector
	maxInFlight int64
}

func New(c connector.Connector, maxInFlight int) *Executor {
	return &Executor{
		connector:   c,
		maxInFlight: int64(maxInFlight),
	}
}

// Execute fires every action of the plan, at most maxInFlight at a time,
// waits for all dispatches to settle, and returns per-action results in
// plan order.
func (e *Executor) Execute(ctx context.Context, plan *model.MigrationPlan) []*model.ActionResult {
	results := make([]*model.ActionResult, len(plan.Actions))

	sem := semaphore.NewWeighted(e.maxInFlight)
	var wg sync.WaitGroup

	for i, action := range plan.Actions {
		i, action := i, action

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = &model.ActionResult{Action: action, Error: err.Error()}
			statistics.Change("migrations_rejected", 1)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			statistics.Change("migrations_dispatched", 1)
			log.Info().Msgf("dispatching migration of %d from %s to %s", action.VMID, action.Source, action.Target)

			if err := e.connector.Migrate(ctx, action); err != nil {
				results[i] = &model.ActionResult{Action: action, Error: err.Error()}
				statistics.Change("migrations_rejected", 1)

				return
			}

			results[i] = &model.ActionResult{Action: action, Accepted: true}
			statistics.Change("migrations_accepted", 1)
		}()
	}

	wg.Wait()

	return results
}
