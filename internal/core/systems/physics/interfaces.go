package physics

// Lightweight geometry shared by sensors, robots and messages. Rigid body
// dynamics are owned by whatever host feeds the simulation.

// Vector3 is anything with a 3D position.
type Vector3 interface {
	X() float64
	Y() float64
	Z() float64
}

// Transform provides a world pose.
type Transform interface {
	Position3() (x, y, z float64)
	Rotation() Quat
}
