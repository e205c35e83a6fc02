package ecs

// Phase enumerates the simulation stages a World moves through each
// frame, each with its own mutation permission (spec §4.10).
type Phase int

const (
	PhaseInitialization Phase = iota
	PhaseInput
	PhaseSimulation
	PhasePostSimulation
	PhaseTeardown
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialization:
		return "Initialization"
	case PhaseInput:
		return "Input"
	case PhaseSimulation:
		return "Simulation"
	case PhasePostSimulation:
		return "PostSimulation"
	case PhaseTeardown:
		return "Teardown"
	default:
		return "Unknown"
	}
}

// Permission is the mutation permission in force during a Phase.
type Permission int

const (
	ReadWriteAll Permission = iota
	ReadOnly
	OwnedOnly
	UnownedOnly
)

// DefaultPhasePermissions is the permission table consulted by
// ValidateWriteAccess, grounded on the teacher's system_manager.go
// style of mutex-guarded, per-key config maps (there used for system
// ordering, here repurposed for phase permission lookup).
func DefaultPhasePermissions() map[Phase]Permission {
	return map[Phase]Permission{
		PhaseInitialization: ReadWriteAll,
		PhaseInput:          ReadWriteAll,
		PhaseSimulation:     OwnedOnly,
		PhasePostSimulation: ReadWriteAll,
		PhaseTeardown:       ReadOnly,
	}
}

// DefaultPhaseTransitions allows strictly forward progression through
// the five phases, plus a cycle back to Input from PostSimulation for
// the next frame.
func DefaultPhaseTransitions() map[Phase][]Phase {
	return map[Phase][]Phase{
		PhaseInitialization: {PhaseInput},
		PhaseInput:          {PhaseSimulation},
		PhaseSimulation:     {PhasePostSimulation},
		PhasePostSimulation: {PhaseInput, PhaseTeardown},
		PhaseTeardown:       {},
	}
}

// phaseGate tracks the current phase and its permission/transition
// tables for a World.
type phaseGate struct {
	current     Phase
	permissions map[Phase]Permission
	transitions map[Phase][]Phase
}

func newPhaseGate(cfg Config) *phaseGate {
	return &phaseGate{
		current:     PhaseInitialization,
		permissions: DefaultPhasePermissions(),
		transitions: cfg.PhaseTransitions,
	}
}

// SetPhase validates the transition against the configured table and,
// if allowed, switches the active phase.
func (g *phaseGate) SetPhase(p Phase) error {
	for _, allowed := range g.transitions[g.current] {
		if allowed == p {
			g.current = p
			return nil
		}
	}
	return NewError(ErrWrongPhase, "phase transition "+g.current.String()+" -> "+p.String()+" is not permitted")
}

// Current returns the active phase.
func (g *phaseGate) Current() Phase { return g.current }

// validateWriteAccess enforces the permission in force for the current
// phase, taking authority into account for OwnedOnly/UnownedOnly.
func (g *phaseGate) validateWriteAccess(e Entity, hasAuthority bool, typeName string) error {
	switch g.permissions[g.current] {
	case ReadWriteAll:
		return nil
	case ReadOnly:
		return WrongPhaseErr(e, typeName, g.current.String())
	case OwnedOnly:
		if hasAuthority {
			return nil
		}
		return WrongPhaseErr(e, typeName, g.current.String())
	case UnownedOnly:
		if !hasAuthority {
			return nil
		}
		return WrongPhaseErr(e, typeName, g.current.String())
	default:
		return nil
	}
}
