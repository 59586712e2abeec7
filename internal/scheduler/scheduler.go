package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/padthaitofuhot/pve-cslb/balance"
	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/connector"
	"github.com/padthaitofuhot/pve-cslb/internal/executor"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/logging"
	"github.com/padthaitofuhot/pve-cslb/statistics"
)

var log = logging.Get()

// Scheduler runs one balancing pass per invocation: collect, filter,
// analyze, plan, then execute or report. Nothing carries over between
// runs; convergence happens across re-invocations.
type Scheduler struct {
	cfg       config.Config
	connector connector.Connector
}

// New validates the configuration before anything is read from the
// cluster; a bad config never produces a partial run.
func New(cfg config.Config, c connector.Connector) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &Scheduler{cfg: cfg, connector: c}, nil
}

// RunOnce performs a full pass and always returns a report unless the
// snapshot read fails. Dispatch failures are partial: they show up in the
// report, not as an error.
func (s *Scheduler) RunOnce(ctx context.Context) (*model.RunReport, error) {
	statistics.Init()

	report := &model.RunReport{
		RunID:  uuid.NewString(),
		DryRun: s.cfg.DryRun,
	}

	snapshot, err := s.connector.Collect(ctx)
	if err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("could not collect cluster snapshot: %w", err)
	}
	log.Info().Msgf("captured %d nodes and %d workloads", len(snapshot.Nodes), snapshot.WorkloadCount())

	balance.Filter(snapshot, balance.NewRules(s.cfg))

	weights := s.cfg.Weights()
	analysis := balance.Analyze(snapshot, weights, s.cfg.Tolerance)
	for _, load := range analysis.Loads {
		log.Debug().Msgf("node %s score %.3f (%s)", load.Node.Name, load.Score, load.Class)
	}

	if analysis.Balanced() {
		report.Balanced = true
		log.Info().Msgf("cluster is balanced (mean score %.3f)", analysis.Mean)

		return report, nil
	}

	plan := balance.Plan(snapshot, analysis, weights, s.cfg.MaxMigrations)
	report.Plan = plan

	if plan.Empty() {
		log.Info().Msg("No migration candidates found.")

		return report, nil
	}

	log.Info().Msgf("planned %d migrations around mean score %.3f", len(plan.Actions), analysis.Mean)
	for _, action := range plan.Actions {
		log.Info().Msgf("plan: %s %d %s -> %s (source %.3f, target %.3f)",
			action.Type, action.VMID, action.Source, action.Target, action.SourceScore, action.TargetScore)
	}

	if s.cfg.DryRun {
		log.Info().Msg("Dry run; no actions taken.")

		return report, nil
	}

	log.Info().Msg("Not a dry run, performing migrations...")
	report.Results = executor.New(s.connector, s.cfg.MaxMigrations).Execute(ctx, plan)

	for _, result := range report.Results {
		if result.Accepted {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	log.Info().Msgf("migrations settled: %d accepted, %d rejected", report.Succeeded, report.Failed)

	return report, nil
}
