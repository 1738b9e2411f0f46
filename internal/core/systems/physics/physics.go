package physics

import "math"

type Vec3 struct{ Xv, Yv, Zv float64 }

func V3(x, y, z float64) Vec3 { return Vec3{Xv: x, Yv: y, Zv: z} }

func (v Vec3) X() float64 { return v.Xv }
func (v Vec3) Y() float64 { return v.Yv }
func (v Vec3) Z() float64 { return v.Zv }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.Xv + o.Xv, v.Yv + o.Yv, v.Zv + o.Zv} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.Xv - o.Xv, v.Yv - o.Yv, v.Zv - o.Zv} }
func (v Vec3) Len() float64    { return math.Sqrt(v.Xv*v.Xv + v.Yv*v.Yv + v.Zv*v.Zv) }

// Quat is a unit quaternion (x, y, z, w).
type Quat struct{ X, Y, Z, W float64 }

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// QuatFromYaw builds a rotation about +Z.
func QuatFromYaw(yaw float64) Quat {
	return Quat{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// Yaw extracts the rotation about +Z.
func (q Quat) Yaw() float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// Pose is a position and orientation.
type Pose struct {
	Position    Vec3
	Orientation Quat
}

func (p Pose) Position3() (x, y, z float64) { return p.Position.Xv, p.Position.Yv, p.Position.Zv }
func (p Pose) Rotation() Quat               { return p.Orientation }

// Twist is a linear and angular velocity.
type Twist struct {
	Linear  Vec3
	Angular Vec3
}

// Capsule is the trigger volume of a contact sensor. Center is the offset from
// the owning node.
type Capsule struct {
	Height float64
	Radius float64
	Center Vec3
}

// Inflate returns a capsule with the same height and center and a radius
// grown by d.
func (c Capsule) Inflate(d float64) Capsule {
	return Capsule{Height: c.Height, Radius: c.Radius + d, Center: c.Center}
}

// Distance computes the Euclidean distance between two transforms.
func Distance(a, b Transform) float64 {
	x1, y1, z1 := a.Position3()
	x2, y2, z2 := b.Position3()
	return V3(x2-x1, y2-y1, z2-z1).Len()
}
