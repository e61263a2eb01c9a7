package object

import (
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahobson/parlance/pkg/value"
)

func TestIDIsReadOnly(t *testing.T) {
	bag := NewPropertyBag()
	id, err := bag.GetProperty("id")
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(bag.ID()), id)

	err = bag.SetProperty("id", value.NewInteger(99))
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.ReadOnlyProperty))
}

func TestDistinctBagsGetDistinctIDs(t *testing.T) {
	a := NewPropertyBag()
	b := NewPropertyBag()
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSetAndGetArbitraryProperty(t *testing.T) {
	bag := NewPropertyBag()
	require.NoError(t, bag.SetProperty("color", value.NewString("red")))

	v, err := bag.GetProperty("color")
	require.NoError(t, err)
	assert.Equal(t, value.NewString("red"), v)
}

func TestUnknownPropertyFails(t *testing.T) {
	bag := NewPropertyBag()
	_, err := bag.GetProperty("nope")
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.UnknownProperty))
}

func TestStrongValueExposesProperties(t *testing.T) {
	bag := NewPropertyBag()
	require.NoError(t, bag.SetProperty("name", value.NewString("bolt")))

	v := Strong(bag)
	got, err := v.PropertyValue("name", nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewString("bolt"), got)
}

// TestWeakValueGoesStaleOnceStrongHolderDrops exercises spec.md §5's
// strong/weak distinction: a Weak Value only resolves as long as some
// strong holder keeps the underlying *Ref reachable. Once that holder
// is gone and a collection actually runs, property access on the weak
// Value fails ObjectDoesNotExist instead of panicking or returning
// stale data.
func TestWeakValueGoesStaleOnceStrongHolderDrops(t *testing.T) {
	bag := NewPropertyBag()
	_, ref := StrongRef(bag)
	weakValue := Weak(ref)

	v, err := weakValue.PropertyValue("id", nil)
	require.NoError(t, err)
	assert.Equal(t, value.NewInteger(bag.ID()), v)

	ref = nil
	goruntime.GC()
	goruntime.GC()

	_, err = weakValue.PropertyValue("id", nil)
	require.Error(t, err)
	assert.True(t, value.IsRuntimeErrorKind(err, value.ObjectDoesNotExist))
}
