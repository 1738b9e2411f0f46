package sensor

import (
	"math"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
)

var _ Sensor = (*LaserScanSensor)(nil)

// ScanTopic is the laser channel of a robot.
func ScanTopic(simNamespace, robotNamespace string) string {
	return simNamespace + "/" + robotNamespace + "/scan"
}

// LaserScanSensor publishes planar scans at the configured update rate.
type LaserScanSensor struct {
	name     string
	topic    string
	frameID  string
	config   LaserConfig
	source   RangeSource
	schedule Schedule
	seq      uint32

	publisher protocol.Publisher
	logger    log.Log
}

// NewLaserScanSensor creates a scanner. A nil source reports nothing in range.
func NewLaserScanSensor(publisher protocol.Publisher, logger log.Log, name, topic, frameID string, config LaserConfig, source RangeSource) *LaserScanSensor {
	if logger == nil {
		logger = log.Provide()
	}
	s := &LaserScanSensor{
		name:      name,
		topic:     topic,
		frameID:   frameID,
		config:    config,
		source:    source,
		schedule:  NewSchedule(config.UpdateRate),
		publisher: publisher,
		logger:    logger.With(log.String("sensor", name), log.String("topic", topic)),
	}
	if err := publisher.RegisterPublisher(topic, msgs.LaserScanName); err != nil {
		s.logger.Error("Failed to register laser publisher", log.Error(err))
	}
	return s
}

func (s *LaserScanSensor) Name() string { return s.name }

func (s *LaserScanSensor) Topic() string { return s.topic }

func (s *LaserScanSensor) FrameID() string { return s.frameID }

func (s *LaserScanSensor) Config() LaserConfig { return s.config }

// ReadingCount is the number of rays per scan, at most MaxLaserReadings.
func (s *LaserScanSensor) ReadingCount() int {
	return min(readingCount(s.config.AngleMin, s.config.AngleMax, s.config.AngleIncrement), MaxLaserReadings)
}

func readingCount(angleMin, angleMax, increment float64) int {
	if increment <= 0 || angleMax < angleMin {
		return 1
	}
	n := math.Floor((angleMax-angleMin)/increment) + 1
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func (s *LaserScanSensor) Tick(now float64) {
	if !s.schedule.Due(now) {
		return
	}

	n := s.ReadingCount()
	var raw []float64
	if s.source != nil {
		raw = s.source.Scan(s.frameID, s.config.AngleMin, s.config.AngleIncrement, n, s.config.Range)
	}

	ranges := make(msgs.Ranges, n)
	inf := float32(math.Inf(1))
	for i := range ranges {
		if i >= len(raw) {
			ranges[i] = inf
			continue
		}
		r := raw[i]
		if math.IsNaN(r) || r < s.config.RangeMin || r > s.config.Range {
			ranges[i] = inf
			continue
		}
		ranges[i] = float32(r)
	}

	s.seq++
	s.publisher.Publish(s.topic, &msgs.LaserScan{
		Header: msgs.Header{
			Seq:     s.seq,
			Stamp:   msgs.TimeFromSeconds(now),
			FrameID: s.frameID,
		},
		AngleMin:       float32(s.config.AngleMin),
		AngleMax:       float32(s.config.AngleMax),
		AngleIncrement: float32(s.config.AngleIncrement),
		ScanTime:       float32(s.schedule.Period()),
		RangeMin:       float32(s.config.RangeMin),
		RangeMax:       float32(s.config.Range),
		Ranges:         ranges,
		Intensities:    msgs.Ranges{},
	})
}
