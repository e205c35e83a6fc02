package ecs

import "time"

// Lifecycle is the coarse state of an entity slot.
type Lifecycle uint8

const (
	LifecycleConstructing Lifecycle = iota
	LifecycleHydrated
	LifecycleActive
	LifecycleTearDown
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleConstructing:
		return "Constructing"
	case LifecycleHydrated:
		return "Hydrated"
	case LifecycleActive:
		return "Active"
	case LifecycleTearDown:
		return "TearDown"
	default:
		return "Unknown"
	}
}

// StagedCreationTimeout is the accumulated-delta budget a staged entity
// has to reach Active before it is treated as a zombie and destroyed.
const StagedCreationTimeout = 5 * time.Second

// LifecycleDescriptor tracks a staged entity's outstanding module
// acknowledgements, using BitMask256 bits as module identifiers.
type LifecycleDescriptor struct {
	RequiredModulesMask BitMask256
	AckedModulesMask    BitMask256
	CreatedTime         time.Time
	AccumulatedDelta    time.Duration

	// Timeout is the accumulated-delta budget before Expired reports
	// true. Zero means "unset", in which case Expired falls back to
	// StagedCreationTimeout — World.CreateStagedEntity always sets this
	// from Config.ZombieTimeout, so the fallback only matters for a
	// LifecycleDescriptor built directly by a test.
	Timeout time.Duration
}

// Ready reports whether every required module has acknowledged.
func (d *LifecycleDescriptor) Ready() bool {
	return Matches(d.AckedModulesMask, d.RequiredModulesMask, BitMask256{})
}

// Expired reports whether the staged entity has exceeded its timeout.
func (d *LifecycleDescriptor) Expired() bool {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = StagedCreationTimeout
	}
	return d.AccumulatedDelta >= timeout
}

// Ack records that the given module bit has acknowledged readiness.
func (d *LifecycleDescriptor) Ack(moduleBit int) {
	d.AckedModulesMask.Set(moduleBit)
}

// Tick accumulates delta time for timeout tracking.
func (d *LifecycleDescriptor) Tick(delta time.Duration) {
	d.AccumulatedDelta += delta
}

// durationFromSeconds converts a float64 seconds delta (the host's
// clocking source, injected per spec §1) into a time.Duration.
func durationFromSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
