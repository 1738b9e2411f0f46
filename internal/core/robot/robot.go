// Package robot spawns robots from URDF and model configuration and attaches
// their sensors.
package robot

import (
	"github.com/zeusync/arenasim/internal/core/models"
	"github.com/zeusync/arenasim/internal/core/sensor"
)

const (
	CollisionSensorName   = "CollisionSensor"
	PedSafeDistSensorName = "PedSafeDistSensor"
	ObsSafeDistSensorName = "ObsSafeDistSensor"
	StatePublisherName    = "StatePublisher"
	LaserScanSensorName   = "LaserScanSensor"
)

// Robot is a spawned robot. Its root entity is named after the namespace and
// parents the URDF link tree plus sensor nodes.
type Robot struct {
	Namespace string
	Model     string
	Root      *models.Entity

	seq uint64
}

// Sensors lists every attached sensor, depth first in attach order.
func (r *Robot) Sensors() []sensor.Sensor {
	return models.ComponentsOf[sensor.Sensor](r.Root)
}

// Tick ticks every sensor of the robot.
func (r *Robot) Tick(now float64) {
	for _, s := range r.Sensors() {
		s.Tick(now)
	}
}

// ContactSensor returns the contact sensor living on the direct child node
// called node.
func (r *Robot) ContactSensor(node string) (*sensor.CollisionSensor, bool) {
	for _, c := range r.Root.Children() {
		if c.Name() != node {
			continue
		}
		v, ok := c.Component(node)
		if !ok {
			return nil, false
		}
		cs, ok := v.(*sensor.CollisionSensor)
		return cs, ok
	}
	return nil, false
}

// SensorInfo describes one attached sensor.
type SensorInfo struct {
	Node  string `json:"node"`
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

// Info is a snapshot of a robot for listing.
type Info struct {
	Namespace string       `json:"namespace"`
	Model     string       `json:"model"`
	Sensors   []SensorInfo `json:"sensors"`
}

func (r *Robot) Info() Info {
	info := Info{Namespace: r.Namespace, Model: r.Model, Sensors: []SensorInfo{}}
	r.Root.Walk(func(e *models.Entity) bool {
		for _, c := range e.Components() {
			if s, ok := c.(sensor.Sensor); ok {
				info.Sensors = append(info.Sensors, SensorInfo{Node: e.Path(), Name: s.Name(), Topic: s.Topic()})
			}
		}
		return true
	})
	return info
}
