// Package sensor holds the simulated sensors attached to robots. Sensors are
// not safe for concurrent use; the world loop owns them and is the only
// caller of their event and Tick methods.
package sensor

import "github.com/zeusync/arenasim/internal/core/systems/physics"

const (
	// FloorTag marks bodies a contact sensor never counts.
	FloorTag = "Floor"

	PedestrianTag = "Pedestrian"
	ObstacleTag   = "Obstacle"

	// DefaultPublishRate is the collision and state publish rate in Hz.
	DefaultPublishRate = 20.0

	// DefaultLaserRate is the scan rate in Hz when update_rate is unset.
	DefaultLaserRate = 10.0

	DefaultRangeMin = 0.1

	// MaxLaserReadings bounds the rays of one scan.
	MaxLaserReadings = 8192
)

// Sensor is anything the world loop ticks.
type Sensor interface {
	Name() string
	Topic() string
	Tick(now float64)
}

// TriggerListener receives overlap events for a trigger volume. The event
// source must pair every exit with a prior enter for the same body.
type TriggerListener interface {
	OnEnter(tag string)
	OnExit(tag string)
}

// RangeSource produces n readings starting at angleMin and stepping by
// angleIncrement, measured from the named frame. Readings beyond maxRange
// may be reported as anything; the laser sensor clamps them.
type RangeSource interface {
	Scan(frameID string, angleMin, angleIncrement float64, n int, maxRange float64) []float64
}

// PoseSource reports the current pose and velocity of a robot.
type PoseSource interface {
	State(name string) (physics.Pose, physics.Twist, bool)
}
