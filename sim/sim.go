package sim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/padthaitofuhot/pve-cslb/balance"
	"github.com/padthaitofuhot/pve-cslb/internal/config"
	"github.com/padthaitofuhot/pve-cslb/internal/model"
	"github.com/padthaitofuhot/pve-cslb/logging"
)

var log = logging.Get()

type GuestFrame struct {
	VMID int     `json:"vmid"`
	Type string  `json:"type"`
	CPU  float64 `json:"cpu"`
	Mem  float64 `json:"mem"`
}

type NodeFrame struct {
	Name      string       `json:"name"`
	CPU       float64      `json:"cpu"`
	Mem       float64      `json:"mem"`
	UsedCPU   float64      `json:"used_cpu"`
	UsedMem   float64      `json:"used_mem"`
	Workloads []GuestFrame `json:"workloads"`
}

// Scenario is a synthetic cluster plus balancing settings, played for a
// number of rounds. Each round is a fresh stateless pass over the then
// current cluster, the same way cron re-invokes the real balancer.
type Scenario struct {
	Rounds        int         `json:"rounds"`
	Tolerance     float64     `json:"tolerance"`
	PercentCPU    float64     `json:"percent_cpu"`
	PercentMem    float64     `json:"percent_mem"`
	MaxMigrations int         `json:"max_migrations"`
	Nodes         []NodeFrame `json:"nodes"`
}

var report struct {
	Mean   []float64 `json:"mean_score"`
	Spread []float64 `json:"score_spread"`
	Moves  []int     `json:"moves"`
}

type simState struct {
	nodes     map[string]*NodeFrame
	workloads []*simWorkload
}

type simWorkload struct {
	frame GuestFrame
	host  string
}

func loadScenario(path string) (*Scenario, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read scenario %s: %w", path, err)
	}

	scenario := &Scenario{
		Rounds:        10,
		Tolerance:     config.DefaultTolerance,
		PercentCPU:    config.DefaultPercentCPU,
		PercentMem:    config.DefaultPercentMem,
		MaxMigrations: config.DefaultMaxMigrations,
	}
	if err := json.Unmarshal(payload, scenario); err != nil {
		return nil, fmt.Errorf("could not parse scenario %s: %w", path, err)
	}

	return scenario, nil
}

func (s *simState) snapshot() *model.ClusterSnapshot {
	snapshot := model.NewClusterSnapshot()

	for _, frame := range s.nodes {
		node := &model.Node{
			Name:     frame.Name,
			Capacity: model.NewResourceVec(frame.CPU, frame.Mem),
			Used:     model.NewResourceVec(frame.UsedCPU, frame.UsedMem),
			Eligible: true,
		}
		if err := snapshot.AddNode(node); err != nil {
			panic(err)
		}
	}

	for _, w := range s.workloads {
		workload := &model.Workload{
			VMID:     w.frame.VMID,
			Name:     fmt.Sprintf("guest-%d", w.frame.VMID),
			Type:     model.GuestType(w.frame.Type),
			Node:     w.host,
			Used:     model.NewResourceVec(w.frame.CPU, w.frame.Mem),
			Eligible: true,
		}
		if err := snapshot.AddWorkload(workload); err != nil {
			panic(err)
		}
	}

	snapshot.Seal()

	return snapshot
}

// apply lands a planned move on the synthetic cluster, the way the real
// cluster would look once the migration completes.
func (s *simState) apply(action *model.MigrationAction) {
	for _, w := range s.workloads {
		if w.frame.VMID != action.VMID {
			continue
		}

		src := s.nodes[action.Source]
		dst := s.nodes[action.Target]
		src.UsedCPU -= w.frame.CPU
		src.UsedMem -= w.frame.Mem
		dst.UsedCPU += w.frame.CPU
		dst.UsedMem += w.frame.Mem
		w.host = action.Target

		return
	}

	panic(fmt.Sprintf("planned vmid %d does not exist in the scenario", action.VMID))
}

// Start plays a scenario file and prints the per-round mean, score spread
// and move count as JSON.
func Start(scenarioPath string) error {
	scenario, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}

	state := &simState{nodes: make(map[string]*NodeFrame)}
	for i := range scenario.Nodes {
		frame := &scenario.Nodes[i]
		state.nodes[frame.Name] = frame
		for _, guest := range frame.Workloads {
			state.workloads = append(state.workloads, &simWorkload{frame: guest, host: frame.Name})
		}
	}

	cfg := config.New()
	cfg.Tolerance = scenario.Tolerance
	cfg.PercentCPU = scenario.PercentCPU
	cfg.PercentMem = scenario.PercentMem
	cfg.MaxMigrations = scenario.MaxMigrations
	if err := cfg.Validate(); err != nil {
		return err
	}
	weights := cfg.Weights()

	for round := 0; round < scenario.Rounds; round++ {
		snapshot := state.snapshot()
		balance.Filter(snapshot, balance.NewRules(cfg))
		analysis := balance.Analyze(snapshot, weights, cfg.Tolerance)

		spread := 0.0
		if len(analysis.Loads) > 0 {
			min, max := analysis.Loads[0].Score, analysis.Loads[0].Score
			for _, load := range analysis.Loads {
				if load.Score < min {
					min = load.Score
				}
				if load.Score > max {
					max = load.Score
				}
			}
			spread = max - min
		}

		plan := balance.Plan(snapshot, analysis, weights, cfg.MaxMigrations)

		report.Mean = append(report.Mean, analysis.Mean)
		report.Spread = append(report.Spread, spread)
		report.Moves = append(report.Moves, len(plan.Actions))

		log.Info().Msgf("round %d: mean %.3f, spread %.3f, %d moves", round, analysis.Mean, spread, len(plan.Actions))

		if plan.Empty() {
			break
		}

		for _, action := range plan.Actions {
			state.apply(action)
		}
	}

	content, _ := json.MarshalIndent(report, "", " ")
	fmt.Println(string(content))

	return nil
}
