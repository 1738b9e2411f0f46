package sensor

import (
	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
)

var _ Sensor = (*StatePublisher)(nil)

func StateTopic(simNamespace, robotNamespace string) string {
	return simNamespace + "/" + robotNamespace + "/state"
}

// StatePublisher publishes the pose and velocity of one robot.
type StatePublisher struct {
	robot    string
	topic    string
	source   PoseSource
	schedule Schedule

	publisher protocol.Publisher
	logger    log.Log
}

func NewStatePublisher(publisher protocol.Publisher, logger log.Log, robot, topic string, rateHz float64, source PoseSource) *StatePublisher {
	if logger == nil {
		logger = log.Provide()
	}
	s := &StatePublisher{
		robot:     robot,
		topic:     topic,
		source:    source,
		schedule:  NewSchedule(rateHz),
		publisher: publisher,
		logger:    logger.With(log.String("robot", robot), log.String("topic", topic)),
	}
	if err := publisher.RegisterPublisher(topic, msgs.RobotStateName); err != nil {
		s.logger.Error("Failed to register state publisher", log.Error(err))
	}
	return s
}

func (s *StatePublisher) Name() string { return "StatePublisher" }

func (s *StatePublisher) Topic() string { return s.topic }

func (s *StatePublisher) Tick(now float64) {
	if !s.schedule.Due(now) {
		return
	}
	pose, twist, ok := s.source.State(s.robot)
	if !ok {
		s.logger.Debug("No pose for robot")
		return
	}
	s.publisher.Publish(s.topic, &msgs.RobotState{
		Name:  s.robot,
		Pose:  msgs.PoseFrom(pose),
		Twist: msgs.TwistFrom(twist),
	})
}
