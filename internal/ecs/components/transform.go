package components

import (
	"math"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs"
)

// Transform holds an entity's local position, rotation and scale.
// Registered as an unmanaged POD component (ecs.RegisterComponent): no
// pointers, matching the teacher's TransformComponent fields but
// replacing its *TransformComponent Parent/Children pointers with a
// plain ecs.Entity handle, since a ComponentTable[T] stores T by raw
// memcpy into cache-aligned chunks and a Go pointer would not survive
// that (spec §3's "no pointers to heap" for unmanaged types, spec
// §4.11's raw chunk capture/restore).
type Transform struct {
	Position Vector2
	Rotation float64
	Scale    Vector2
	Parent   ecs.Entity
}

// NewTransform returns a Transform at the origin with unit scale and no
// parent.
func NewTransform() Transform {
	return Transform{
		Position: Vector2{X: 0, Y: 0},
		Rotation: 0,
		Scale:    Vector2{X: 1, Y: 1},
		Parent:   ecs.NullEntity,
	}
}

// WorldPosition resolves e's world-space position by walking the parent
// chain recorded in Transform.Parent, composing rotation and scale at
// each level the way the teacher's GetWorldPosition does, minus the
// pointer-chasing: a parent is another live entity, looked up through w.
func WorldPosition(w *ecs.World, e ecs.Entity) (Vector2, error) {
	t, err := ecs.GetRO[Transform](w, e)
	if err != nil {
		return Vector2{}, err
	}
	if t.Parent.IsNull() || !w.IsAlive(t.Parent) {
		return t.Position, nil
	}
	parentPos, err := WorldPosition(w, t.Parent)
	if err != nil {
		return Vector2{}, err
	}
	parentRot, err := WorldRotation(w, t.Parent)
	if err != nil {
		return Vector2{}, err
	}
	parentScale, err := WorldScale(w, t.Parent)
	if err != nil {
		return Vector2{}, err
	}
	cos := math.Cos(parentRot)
	sin := math.Sin(parentRot)
	worldX := (t.Position.X*cos-t.Position.Y*sin)*parentScale.X + parentPos.X
	worldY := (t.Position.X*sin+t.Position.Y*cos)*parentScale.Y + parentPos.Y
	return Vector2{X: worldX, Y: worldY}, nil
}

// WorldRotation resolves e's world-space rotation.
func WorldRotation(w *ecs.World, e ecs.Entity) (float64, error) {
	t, err := ecs.GetRO[Transform](w, e)
	if err != nil {
		return 0, err
	}
	if t.Parent.IsNull() || !w.IsAlive(t.Parent) {
		return t.Rotation, nil
	}
	parentRot, err := WorldRotation(w, t.Parent)
	if err != nil {
		return 0, err
	}
	return parentRot + t.Rotation, nil
}

// WorldScale resolves e's world-space scale.
func WorldScale(w *ecs.World, e ecs.Entity) (Vector2, error) {
	t, err := ecs.GetRO[Transform](w, e)
	if err != nil {
		return Vector2{}, err
	}
	if t.Parent.IsNull() || !w.IsAlive(t.Parent) {
		return t.Scale, nil
	}
	parentScale, err := WorldScale(w, t.Parent)
	if err != nil {
		return Vector2{}, err
	}
	return Vector2{X: t.Scale.X * parentScale.X, Y: t.Scale.Y * parentScale.Y}, nil
}

// SetParent reparents e under parent, rejecting a self-reference or a
// cycle the way the teacher's SetParent does, by walking parent's own
// ancestor chain looking for e.
func SetParent(w *ecs.World, e, parent ecs.Entity) error {
	if e == parent {
		return ecs.NewError(ecs.ErrUnsupported, "cannot set self as parent")
	}
	if !parent.IsNull() {
		cur := parent
		for !cur.IsNull() {
			if cur == e {
				return ecs.NewError(ecs.ErrUnsupported, "circular transform parent reference")
			}
			ct, err := ecs.GetRO[Transform](w, cur)
			if err != nil {
				break
			}
			cur = ct.Parent
		}
	}
	t, err := ecs.GetRW[Transform](w, e)
	if err != nil {
		return err
	}
	t.Parent = parent
	return nil
}
