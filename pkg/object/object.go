// Package object provides a minimal host-owned NativeObject
// implementation: an in-memory property bag with a read-only id,
// exercising the capability surface spec.md §6 describes without
// pulling in any persistent object model (explicitly out of scope,
// spec.md §1).
package object

import (
	"sync/atomic"

	"github.com/ahobson/parlance/pkg/value"
)

var nextID int64

// PropertyBag is a NativeObject backed by a plain string-keyed map of
// Values. It's the "small native object hook surfaced to property
// access" spec.md §1 calls the one bit of host object model in scope.
type PropertyBag struct {
	id         int64
	properties map[string]value.Value
}

// NewPropertyBag returns an empty bag with a freshly assigned id.
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{
		id:         atomic.AddInt64(&nextID, 1),
		properties: make(map[string]value.Value),
	}
}

func (p *PropertyBag) ID() int64 { return p.id }

func (p *PropertyBag) GetProperty(name string) (value.Value, error) {
	if name == "id" {
		return value.NewInteger(p.id), nil
	}
	if v, ok := p.properties[name]; ok {
		return v, nil
	}
	return value.Value{}, &value.RuntimeError{Kind: value.UnknownProperty, Detail: name}
}

func (p *PropertyBag) SetProperty(name string, v value.Value) error {
	if name == "id" {
		return &value.RuntimeError{Kind: value.ReadOnlyProperty, Detail: name}
	}
	p.properties[name] = v
	return nil
}

// Strong wraps bag as a strong Value (the NativeObject variant).
func Strong(bag *PropertyBag) value.Value {
	return value.NewNativeObject(bag)
}

// StrongRef returns both a strong Value and the underlying *Ref, so a
// caller can later hand out Weak Values observing the same object
// without re-wrapping it (and thus without creating a second,
// independently-collectible box).
func StrongRef(bag *PropertyBag) (value.Value, *value.Ref) {
	ref := value.NewRef(bag)
	return value.NewNativeObjectRef(ref), ref
}

// Weak returns a Value observing ref without keeping it alive.
func Weak(ref *value.Ref) value.Value {
	return value.NewWeakNativeObject(ref)
}
