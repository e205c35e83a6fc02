package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type singletonTestConfig struct{ Seed int }

// Test_Singleton_SetGetHas tests the basic process-wide value
// lifecycle, including auto-registration on first Set.
func Test_Singleton_SetGetHas(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()

	assert.False(t, HasSingleton[singletonTestConfig](w))

	SetSingleton(w, singletonTestConfig{Seed: 42})

	assert.True(t, HasSingleton[singletonTestConfig](w))
	v, err := GetSingleton[singletonTestConfig](w)
	require.NoError(t, err)
	assert.Equal(t, 42, v.Seed)
}

// Test_Singleton_Get_UnsetReportsMissingComponent tests that reading a
// singleton that was registered (via RegisterType) but never Set
// reports MissingComponent rather than a zero value.
func Test_Singleton_Get_UnsetReportsMissingComponent(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()
	RegisterType[singletonTestConfig](DefaultImmutableRecordPolicy())

	_, err := GetSingleton[singletonTestConfig](w)

	assert.True(t, IsMissingComponent(err))
}

// Test_Singleton_Set_Overwrites tests that a second Set replaces the
// first value rather than erroring.
func Test_Singleton_Set_Overwrites(t *testing.T) {
	w := NewDefaultWorld()
	defer w.Close()
	SetSingleton(w, singletonTestConfig{Seed: 1})

	SetSingleton(w, singletonTestConfig{Seed: 2})

	v, err := GetSingleton[singletonTestConfig](w)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Seed)
}
