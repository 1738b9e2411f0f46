package sensor

import (
	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

var (
	_ Sensor          = (*CollisionSensor)(nil)
	_ TriggerListener = (*CollisionSensor)(nil)
)

// CollisionTopic is the default channel of a robot's contact sensor.
func CollisionTopic(simNamespace, robotNamespace string) string {
	return simNamespace + "/" + robotNamespace + "/collision"
}

type CollisionOptions struct {
	// Name of the node the sensor is attached to.
	Name string
	// Topic overrides the channel. Required.
	Topic string
	// RateHz defaults to DefaultPublishRate.
	RateHz float64
	// IncludeTags restricts counting to these tags. Empty counts every tag
	// except FloorTag.
	IncludeTags []string
}

// CollisionSensor counts bodies overlapping its capsule and publishes
// whether the count is positive, at most once per period.
type CollisionSensor struct {
	name     string
	topic    string
	include  map[string]struct{}
	schedule Schedule

	count    int
	collider physics.Capsule

	publisher protocol.Publisher
	logger    log.Log
}

func NewCollisionSensor(publisher protocol.Publisher, logger log.Log, opts CollisionOptions) *CollisionSensor {
	if logger == nil {
		logger = log.Provide()
	}
	s := &CollisionSensor{
		name:      opts.Name,
		topic:     opts.Topic,
		schedule:  NewSchedule(opts.RateHz),
		publisher: publisher,
		logger: logger.With(
			log.String("sensor", opts.Name),
			log.String("topic", opts.Topic),
		),
	}
	if len(opts.IncludeTags) > 0 {
		s.include = make(map[string]struct{}, len(opts.IncludeTags))
		for _, t := range opts.IncludeTags {
			s.include[t] = struct{}{}
		}
	}
	if err := publisher.RegisterPublisher(s.topic, msgs.CollisionName); err != nil {
		s.logger.Error("Failed to register collision publisher", log.Error(err))
	}
	return s
}

func (s *CollisionSensor) Name() string { return s.name }

func (s *CollisionSensor) Topic() string { return s.topic }

func (s *CollisionSensor) counts(tag string) bool {
	if tag == FloorTag {
		return false
	}
	if s.include == nil {
		return true
	}
	_, ok := s.include[tag]
	return ok
}

func (s *CollisionSensor) OnEnter(tag string) {
	if s.counts(tag) {
		s.count++
	}
}

func (s *CollisionSensor) OnExit(tag string) {
	if s.counts(tag) {
		s.count--
	}
}

func (s *CollisionSensor) Count() int { return s.count }

func (s *CollisionSensor) InContact() bool { return s.count > 0 }

func (s *CollisionSensor) Collider() physics.Capsule { return s.collider }

// SetCollider replaces the capsule without validation.
func (s *CollisionSensor) SetCollider(c physics.Capsule) { s.collider = c }

func (s *CollisionSensor) Tick(now float64) {
	if !s.schedule.Due(now) {
		return
	}
	s.publisher.Publish(s.topic, &msgs.Collision{InContact: s.InContact()})
}

// Configure applies height, radius and position. Each key is applied on its
// own; failing keys are logged and keep their previous value. It returns true
// only when every key applied.
func (s *CollisionSensor) Configure(config map[string]any) bool {
	patch, err := ParseColliderConfig(config)
	s.collider = patch.Apply(s.collider)
	if err == nil {
		return true
	}
	for _, fe := range FieldErrors(err) {
		s.logger.Warn("Collider config field not applied",
			log.String("field", fe.Field),
			log.Error(fe.Err))
	}
	return false
}
