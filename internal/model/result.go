package model

import (
	"gopkg.in/yaml.v3"
)

// MigrationAction is one planned move. It is created by the planner and
// never mutated afterwards; the projected scores are what the working
// utilization copies predicted for both ends once the move lands.
type MigrationAction struct {
	VMID        int       `yaml:"vmid"`
	Type        GuestType `yaml:"type"`
	Source      string    `yaml:"source"`
	Target      string    `yaml:"target"`
	SourceScore float64   `yaml:"projected_source_score"`
	TargetScore float64   `yaml:"projected_target_score"`
}

func (a *MigrationAction) String() string {
	bytes, _ := yaml.Marshal(a)
	return string(bytes)
}

// MigrationPlan is the ordered output of one planning pass. Its length is
// bounded by max_migrations and no VMID appears twice.
type MigrationPlan struct {
	Mean    float64            `yaml:"cluster_mean_score"`
	Actions []*MigrationAction `yaml:"actions"`
}

func (p *MigrationPlan) Empty() bool {
	return p == nil || len(p.Actions) == 0
}

func (p *MigrationPlan) String() string {
	bytes, _ := yaml.Marshal(p)
	return string(bytes)
}

// ActionResult records the dispatch outcome of a single action. Failures
// are local: a rejected migration never cancels its siblings.
type ActionResult struct {
	Action   *MigrationAction `yaml:"action"`
	Accepted bool             `yaml:"accepted"`
	Error    string           `yaml:"error,omitempty"`
}

// RunReport is the user-visible product of one balancing pass.
type RunReport struct {
	RunID     string          `yaml:"run_id"`
	Balanced  bool            `yaml:"balanced"`
	DryRun    bool            `yaml:"dry_run"`
	Plan      *MigrationPlan  `yaml:"plan,omitempty"`
	Results   []*ActionResult `yaml:"results,omitempty"`
	Succeeded int             `yaml:"succeeded"`
	Failed    int             `yaml:"failed"`
}

func (r *RunReport) String() string {
	bytes, _ := yaml.Marshal(r)
	return string(bytes)
}
