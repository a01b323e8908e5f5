package domain

// GoalTracking is cumulative evidence that the session has covered the coaching
// checklist. Flags only ever go from false to true.
type GoalTracking struct {
	GoalStated              bool `json:"goal_stated"`
	MotivationUnderstood    bool `json:"motivation_understood"`
	ConstraintsAcknowledged bool `json:"constraints_acknowledged"`
	NextStepsDefined        bool `json:"next_steps_defined"`
}

// Merge ORs other into g, keeping flags monotonic.
func (g GoalTracking) Merge(other GoalTracking) GoalTracking {
	return GoalTracking{
		GoalStated:              g.GoalStated || other.GoalStated,
		MotivationUnderstood:    g.MotivationUnderstood || other.MotivationUnderstood,
		ConstraintsAcknowledged: g.ConstraintsAcknowledged || other.ConstraintsAcknowledged,
		NextStepsDefined:        g.NextStepsDefined || other.NextStepsDefined,
	}
}
