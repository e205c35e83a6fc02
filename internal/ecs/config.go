package ecs

import "time"

// Config holds World initialization parameters, in the style of the
// teacher's WorldConfig/DefaultWorldConfig (types.go): a plain struct
// of tunables with a Default constructor, rather than a builder or
// functional-options API.
type Config struct {
	MaxEntities int // initial entity-header chunk hint, the index still grows past this

	// PhaseTransitions maps an "from -> allowed to" table; SetPhase
	// refuses any transition absent from this table.
	PhaseTransitions map[Phase][]Phase

	// RecorderCompression enables LZ4 block compression for frames
	// written by Recorder.WriteFrame; disabling it is a debugging aid
	// only (the on-disk format still reserves the two length fields).
	RecorderCompression bool

	// DebugAudit gates Query.ForEach's MaskDesync diagnostic pass: when
	// set, ForEach compares every live entity's component_mask against
	// every registered table's actual presence before scanning, and
	// publishes a MaskDesyncEvent for each disagreement (spec §9 Design
	// Notes "mask-vs-table drift"). Off by default since it is an
	// O(entities * registered types) pass per ForEach call.
	DebugAudit bool

	// ZombieTimeout is the accumulated-delta budget staged entities
	// get before being destroyed; defaults to StagedCreationTimeout.
	ZombieTimeout time.Duration
}

// DefaultConfig returns a Config with the phase transition table and
// timeouts this spec requires.
func DefaultConfig() Config {
	return Config{
		MaxEntities:         10000,
		PhaseTransitions:    DefaultPhaseTransitions(),
		RecorderCompression: true,
		DebugAudit:          false,
		ZombieTimeout:       StagedCreationTimeout,
	}
}
