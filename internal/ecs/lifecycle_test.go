package ecs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Test_LifecycleDescriptor_Ready tests that Ready only holds once every
// required module bit has been acknowledged.
func Test_LifecycleDescriptor_Ready(t *testing.T) {
	var d LifecycleDescriptor
	d.RequiredModulesMask.Set(1)
	d.RequiredModulesMask.Set(2)

	assert.False(t, d.Ready())

	d.Ack(1)
	assert.False(t, d.Ready())

	d.Ack(2)
	assert.True(t, d.Ready())
}

// Test_LifecycleDescriptor_Expired tests the accumulated-delta timeout.
func Test_LifecycleDescriptor_Expired(t *testing.T) {
	var d LifecycleDescriptor
	assert.False(t, d.Expired())

	d.Tick(StagedCreationTimeout - time.Millisecond)
	assert.False(t, d.Expired())

	d.Tick(2 * time.Millisecond)
	assert.True(t, d.Expired())
}

// Test_Lifecycle_String tests the human-readable phase names, including
// the unknown fallback.
func Test_Lifecycle_String(t *testing.T) {
	assert.Equal(t, "Constructing", LifecycleConstructing.String())
	assert.Equal(t, "Hydrated", LifecycleHydrated.String())
	assert.Equal(t, "Active", LifecycleActive.String())
	assert.Equal(t, "TearDown", LifecycleTearDown.String())
	assert.Equal(t, "Unknown", Lifecycle(99).String())
}

// Test_DurationFromSeconds tests the float-seconds-to-Duration helper.
func Test_DurationFromSeconds(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, durationFromSeconds(0.5))
}
