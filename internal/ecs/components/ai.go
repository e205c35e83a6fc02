package components

// AIBlackboard holds an NPC's behavioral state: patrol route, target,
// detection/attack ranges, and a short state-change history. Registered
// as a managed component (ecs.RegisterManagedComponent) rather than a
// ComponentTable[T] POD: PatrolPoints and StateHistory are slices, and
// a slice header holding a heap pointer cannot be memcpy'd bit-exact
// into a raw chunk (spec §3's managed/reference-type path). Adapted
// from the teacher's AIComponent.
type AIBlackboard struct {
	State              AIState
	Target             uint64 // 0 means "no target"; callers resolve via ecs.Entity when non-zero
	PatrolPoints       []Vector2
	DetectionRadius    float64
	AttackRange        float64
	Speed              float64
	Behavior           AIBehavior
	LastStateChangeAt  int64
	currentPatrolIndex int
	stateHistory       []AIState
}

// NewAIBlackboard returns an idle AIBlackboard with no target and the
// teacher's default detection/attack/speed values.
func NewAIBlackboard() *AIBlackboard {
	return &AIBlackboard{
		State:           AIStateIdle,
		PatrolPoints:    make([]Vector2, 0),
		DetectionRadius: 50.0,
		AttackRange:     10.0,
		Speed:           100.0,
		Behavior:        AIBehaviorNeutral,
		stateHistory:    make([]AIState, 0),
	}
}

// SetState transitions to state, appending to the internal history the
// way the teacher's SetState records every distinct transition.
func (a *AIBlackboard) SetState(state AIState) {
	if a.State != state {
		a.State = state
		a.stateHistory = append(a.stateHistory, state)
		a.LastStateChangeAt = unixNano()
	}
}

// History returns the recorded state-transition sequence.
func (a *AIBlackboard) History() []AIState {
	return a.stateHistory
}

// NextPatrolPoint advances and returns the current patrol waypoint,
// wrapping around PatrolPoints; the zero Vector2 if the route is empty.
func (a *AIBlackboard) NextPatrolPoint() Vector2 {
	if len(a.PatrolPoints) == 0 {
		return Vector2{}
	}
	p := a.PatrolPoints[a.currentPatrolIndex%len(a.PatrolPoints)]
	a.currentPatrolIndex++
	return p
}
