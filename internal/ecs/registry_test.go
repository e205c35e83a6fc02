package ecs

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registryTestFoo struct{ A int }
type registryTestBar struct{ B string }

// Test_TypeRegistry_Register_IsIdempotentPerType tests that registering
// the same reflect.Type twice returns the same dense ID.
func Test_TypeRegistry_Register_IsIdempotentPerType(t *testing.T) {
	r := newTypeRegistry()

	id1, err := r.Register(reflect.TypeOf(registryTestFoo{}), DefaultPODPolicy())
	require.NoError(t, err)
	id2, err := r.Register(reflect.TypeOf(registryTestFoo{}), DefaultPODPolicy())
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

// Test_TypeRegistry_Register_AssignsDenseSequentialIDs tests that
// distinct types get distinct, sequential IDs starting at 0.
func Test_TypeRegistry_Register_AssignsDenseSequentialIDs(t *testing.T) {
	r := newTypeRegistry()

	fooID, err := r.Register(reflect.TypeOf(registryTestFoo{}), DefaultPODPolicy())
	require.NoError(t, err)
	barID, err := r.Register(reflect.TypeOf(registryTestBar{}), DefaultPODPolicy())
	require.NoError(t, err)

	assert.Equal(t, 0, fooID)
	assert.Equal(t, 1, barID)
	assert.Equal(t, 2, r.Count())
}

// Test_TypeRegistry_Register_OverflowsPastLimit tests that the 257th
// distinct type is refused with an Overflow error.
func Test_TypeRegistry_Register_OverflowsPastLimit(t *testing.T) {
	r := newTypeRegistry()
	type named struct{ n int }
	types := make([]reflect.Type, 0, MaxComponentTypes+1)
	// Build MaxComponentTypes distinct types via distinct array lengths,
	// each a structurally different reflect.Type.
	for i := 0; i < MaxComponentTypes; i++ {
		types = append(types, reflect.ArrayOf(i+1, reflect.TypeOf(named{})))
	}
	for _, typ := range types {
		_, err := r.Register(typ, DefaultPODPolicy())
		require.NoError(t, err)
	}
	assert.Equal(t, MaxComponentTypes, r.Count())

	_, err := r.Register(reflect.ArrayOf(MaxComponentTypes+1, reflect.TypeOf(named{})), DefaultPODPolicy())

	require.Error(t, err)
	var ecsErr *Error
	require.ErrorAs(t, err, &ecsErr)
	assert.Equal(t, ErrOverflow, ecsErr.Code)
}

// Test_TypeRegistry_PolicyRoundTrip tests Policy/SetPolicy and the
// out-of-range NotRegistered error.
func Test_TypeRegistry_PolicyRoundTrip(t *testing.T) {
	r := newTypeRegistry()
	id, err := r.Register(reflect.TypeOf(registryTestFoo{}), DefaultPODPolicy())
	require.NoError(t, err)

	p, err := r.Policy(id)
	require.NoError(t, err)
	assert.True(t, p.Snapshotable)

	require.NoError(t, r.SetPolicy(id, DefaultMutableClassPolicy()))
	p, err = r.Policy(id)
	require.NoError(t, err)
	assert.False(t, p.Snapshotable)

	_, err = r.Policy(999)
	assert.Error(t, err)
}

// Test_TypeRegistry_NameAndIDByName tests that a type's registered
// string name round-trips through IDByName.
func Test_TypeRegistry_NameAndIDByName(t *testing.T) {
	r := newTypeRegistry()
	id, err := r.Register(reflect.TypeOf(registryTestBar{}), DefaultPODPolicy())
	require.NoError(t, err)

	name, err := r.NameOf(id)
	require.NoError(t, err)
	assert.Contains(t, name, "registryTestBar")

	backID, err := r.IDByName(name)
	require.NoError(t, err)
	assert.Equal(t, id, backID)

	_, err = r.IDByName("NoSuchType")
	assert.Error(t, err)
}

// Test_TypeRegistry_IDOf_NotRegistered tests that an unregistered type
// returns NotRegistered rather than panicking.
func Test_TypeRegistry_IDOf_NotRegistered(t *testing.T) {
	r := newTypeRegistry()
	_, err := r.IDOf(reflect.TypeOf(registryTestFoo{}))
	assert.Error(t, err)
}

// registryGlobalProbe is a type private to this test, registered only
// once against the process-wide globalRegistry to exercise
// RegisterType/TypeIDFor/GlobalRegistry without colliding with types
// used elsewhere in the package's test suite.
type registryGlobalProbe struct{ V int }

// Test_RegisterType_GlobalRegistry tests the package-level convenience
// wrappers around the singleton globalRegistry.
func Test_RegisterType_GlobalRegistry(t *testing.T) {
	id := RegisterType[registryGlobalProbe](DefaultPODPolicy())

	gotID, err := TypeIDFor[registryGlobalProbe]()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	assert.Same(t, globalRegistry, GlobalRegistry())

	policy, err := RegistryPolicy(id)
	require.NoError(t, err)
	assert.True(t, policy.Recordable)

	name, err := RegistryName(id)
	require.NoError(t, err)
	backID, err := RegistryIDByName(name)
	require.NoError(t, err)
	assert.Equal(t, id, backID)
}
