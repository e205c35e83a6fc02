package components

import "math"

// Physics holds an entity's linear motion state: velocity, the force
// accumulator, and material/limits parameters. Unmanaged POD, adapted
// from the teacher's PhysicsComponent with the json tags and the
// Gravity/IsStatic flags kept as plain bools.
type Physics struct {
	Velocity     Vector2
	Acceleration Vector2
	Mass         float64
	Friction     float64
	Gravity      bool
	IsStatic     bool
	MaxSpeed     float64
}

// NewPhysics returns a Physics at rest with unit mass, as the teacher's
// NewPhysicsComponent does (10000.0 stands in for "effectively
// unbounded" the same way the teacher avoids math.Inf for a POD field).
func NewPhysics() Physics {
	return Physics{
		Velocity:     Vector2{X: 0, Y: 0},
		Acceleration: Vector2{X: 0, Y: 0},
		Mass:         1.0,
		Friction:     0.0,
		Gravity:      false,
		IsStatic:     false,
		MaxSpeed:     10000.0,
	}
}

// ApplyForce accumulates force/mass into p's acceleration; a no-op for a
// static body or non-positive mass.
func (p *Physics) ApplyForce(force Vector2) {
	if p.IsStatic || p.Mass <= 0 {
		return
	}
	p.Acceleration.X += force.X / p.Mass
	p.Acceleration.Y += force.Y / p.Mass
}

// Integrate advances velocity by acceleration*dt, clamps to MaxSpeed,
// applies friction, and resets the accumulator — one fixed-step
// symplectic-Euler tick, the shape the teacher's physics system runs
// per frame over every PhysicsComponent.
func (p *Physics) Integrate(dt float64) {
	if p.IsStatic {
		return
	}
	p.Velocity.X += p.Acceleration.X * dt
	p.Velocity.Y += p.Acceleration.Y * dt

	if p.Friction > 0 {
		decay := 1.0 - p.Friction*dt
		if decay < 0 {
			decay = 0
		}
		p.Velocity.X *= decay
		p.Velocity.Y *= decay
	}

	speed := vecLen(p.Velocity)
	if p.MaxSpeed > 0 && speed > p.MaxSpeed {
		scale := p.MaxSpeed / speed
		p.Velocity.X *= scale
		p.Velocity.Y *= scale
	}

	p.Acceleration = Vector2{}
}

func vecLen(v Vector2) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}
