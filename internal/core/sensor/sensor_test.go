package sensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

type published struct {
	topic string
	msg   msgs.Message
}

type recorder struct {
	registered map[string]string
	out        []published
}

func newRecorder() *recorder { return &recorder{registered: map[string]string{}} }

func (r *recorder) RegisterPublisher(topic, messageType string) error {
	r.registered[topic] = messageType
	return nil
}

func (r *recorder) Publish(topic string, msg msgs.Message) {
	r.out = append(r.out, published{topic: topic, msg: msg})
}

func (r *recorder) collisions() []bool {
	var out []bool
	for _, p := range r.out {
		if c, ok := p.msg.(*msgs.Collision); ok {
			out = append(out, c.InContact)
		}
	}
	return out
}

func newCollision(r *recorder, include ...string) *CollisionSensor {
	return NewCollisionSensor(r, log.NewNop(), CollisionOptions{
		Name:        "CollisionSensor",
		Topic:       CollisionTopic("sim_1", "jackal"),
		IncludeTags: include,
	})
}

func TestScheduleStrictlyGreaterThanPeriod(t *testing.T) {
	s := NewSchedule(20)
	assert.InDelta(t, 0.05, s.Period(), 1e-12)

	assert.False(t, s.Due(0))
	assert.False(t, s.Due(0.05))
	assert.True(t, s.Due(0.06))
	assert.InDelta(t, 0.06, s.Last(), 1e-12)
	assert.False(t, s.Due(0.1))
	assert.False(t, s.Due(0.105))
	assert.True(t, s.Due(0.1101))
}

func TestScheduleNeverPublishesTwiceWithinPeriod(t *testing.T) {
	s := NewSchedule(10)
	var fired []float64
	for i := 0; i <= 1000; i++ {
		now := float64(i) * 0.007
		if s.Due(now) {
			fired = append(fired, now)
		}
	}
	require.NotEmpty(t, fired)
	for i := 1; i < len(fired); i++ {
		assert.Greater(t, fired[i]-fired[i-1], s.Period())
	}
}

func TestScheduleDefaultRate(t *testing.T) {
	s := NewSchedule(0)
	assert.InDelta(t, 1/DefaultPublishRate, s.Period(), 1e-12)
}

func TestCollisionCounterIgnoresFloor(t *testing.T) {
	s := newCollision(newRecorder())

	s.OnEnter(FloorTag)
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.InContact())

	s.OnEnter("robot")
	s.OnEnter(PedestrianTag)
	s.OnEnter(FloorTag)
	assert.Equal(t, 2, s.Count())
	assert.True(t, s.InContact())

	s.OnExit(FloorTag)
	s.OnExit("robot")
	assert.Equal(t, 1, s.Count())
	s.OnExit(PedestrianTag)
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.InContact())
}

func TestCollisionCounterIsOrderIndependent(t *testing.T) {
	tags := []string{"a", "b", "c", "d"}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}}

	for _, enterOrder := range orders {
		for _, exitOrder := range orders {
			s := newCollision(newRecorder())
			for _, i := range enterOrder {
				s.OnEnter(tags[i])
				assert.GreaterOrEqual(t, s.Count(), 0)
			}
			assert.Equal(t, len(tags), s.Count())
			for n, i := range exitOrder {
				s.OnExit(tags[i])
				assert.Equal(t, len(tags)-n-1, s.Count())
				assert.Equal(t, s.Count() > 0, s.InContact())
			}
		}
	}
}

func TestCollisionIncludeTags(t *testing.T) {
	s := newCollision(newRecorder(), PedestrianTag)
	s.OnEnter(ObstacleTag)
	s.OnEnter(FloorTag)
	assert.False(t, s.InContact())
	s.OnEnter(PedestrianTag)
	assert.Equal(t, 1, s.Count())
	s.OnExit(ObstacleTag)
	assert.Equal(t, 1, s.Count())
}

func TestCollisionTickPublishesStateAtTickTime(t *testing.T) {
	r := newRecorder()
	s := newCollision(r)
	assert.Equal(t, msgs.CollisionName, r.registered["sim_1/jackal/collision"])

	// enter at t=0.05 before the period has elapsed
	s.Tick(0.0)
	s.OnEnter("robot")
	s.Tick(0.05)
	assert.Empty(t, r.out)

	s.Tick(0.06)
	require.Len(t, r.out, 1)
	assert.Equal(t, "sim_1/jackal/collision", r.out[0].topic)
	assert.Equal(t, []bool{true}, r.collisions())

	s.OnExit("robot")
	s.Tick(0.08)
	s.Tick(0.12)
	assert.Equal(t, []bool{true, false}, r.collisions())
}

func TestCollisionConfigureAllFields(t *testing.T) {
	s := newCollision(newRecorder())
	ok := s.Configure(map[string]any{
		"height":   "1.5",
		"radius":   0.4,
		"position": []any{"0.1", 0, 2.5},
	})
	require.True(t, ok)
	assert.Equal(t, physics.Capsule{Height: 1.5, Radius: 0.4, Center: physics.V3(0.1, 0, 2.5)}, s.Collider())
}

func TestCollisionConfigureBadRadius(t *testing.T) {
	s := newCollision(newRecorder())
	s.SetCollider(physics.Capsule{Height: 9, Radius: 0.7, Center: physics.V3(1, 1, 1)})

	ok := s.Configure(map[string]any{
		"height":   "1.0",
		"radius":   "bad",
		"position": []string{"0", "0", "0"},
	})
	assert.False(t, ok)
	assert.Equal(t, physics.Capsule{Height: 1.0, Radius: 0.7, Center: physics.V3(0, 0, 0)}, s.Collider())
}

func TestCollisionConfigureMissingFieldsStillPublishes(t *testing.T) {
	r := newRecorder()
	s := newCollision(r)
	assert.False(t, s.Configure(map[string]any{}))
	assert.Equal(t, physics.Capsule{}, s.Collider())

	s.Tick(1)
	assert.Equal(t, []bool{false}, r.collisions())
}

func TestParseColliderConfigReportsEveryField(t *testing.T) {
	patch, err := ParseColliderConfig(map[string]any{
		"height":   "x",
		"position": []any{"1", "2"},
	})
	require.Error(t, err)
	assert.Nil(t, patch.Height)
	assert.Nil(t, patch.Radius)
	assert.Nil(t, patch.Position)

	fields := map[string]error{}
	for _, fe := range FieldErrors(err) {
		fields[fe.Field] = fe.Err
	}
	require.Len(t, fields, 3)
	assert.ErrorIs(t, fields["height"], ErrNotNumeric)
	assert.ErrorIs(t, fields["radius"], ErrMissingField)
	assert.ErrorIs(t, fields["position"], ErrBadVector)
}

func TestParseColliderConfigRejectsNonFinite(t *testing.T) {
	_, err := ParseColliderConfig(map[string]any{
		"height":   "NaN",
		"radius":   math.Inf(1),
		"position": []float64{0, 0, 0},
	})
	require.Len(t, FieldErrors(err), 2)
}

func TestParseLaserConfig(t *testing.T) {
	cfg, err := ParseLaserConfig(map[string]any{
		"type":  "Laser",
		"frame": "laser_link",
		"range": 10,
		"angle": map[string]any{"min": -1.5, "max": 1.5, "increment": "0.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, LaserConfig{
		Frame:          "laser_link",
		Range:          10,
		AngleMin:       -1.5,
		AngleMax:       1.5,
		AngleIncrement: 0.5,
		UpdateRate:     DefaultLaserRate,
		RangeMin:       DefaultRangeMin,
	}, cfg)

	_, err = ParseLaserConfig(map[string]any{
		"range":       "far",
		"angle":       map[string]any{"min": 0, "max": 1, "increment": 0},
		"update_rate": 5,
	})
	fields := map[string]bool{}
	for _, fe := range FieldErrors(err) {
		fields[fe.Field] = true
	}
	assert.Equal(t, map[string]bool{"frame": true, "range": true, "angle.increment": true}, fields)
}

func TestParseLaserConfigRejectsTinyIncrement(t *testing.T) {
	cfg, err := ParseLaserConfig(map[string]any{
		"frame": "laser_link",
		"range": 10,
		"angle": map[string]any{"min": -3.14, "max": 3.14, "increment": 1e-9},
	})
	fields := FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "angle.increment", fields[0].Field)
	assert.ErrorIs(t, err, ErrTooManyRays)
	assert.Zero(t, cfg.AngleIncrement)

	s := NewLaserScanSensor(newRecorder(), log.NewNop(), "laser", "t", "f", cfg, nil)
	assert.Equal(t, 1, s.ReadingCount())
}

func TestLaserReadingCountIsCapped(t *testing.T) {
	r := newRecorder()
	s := NewLaserScanSensor(r, log.NewNop(), "laser", "t", "f",
		LaserConfig{Range: 1, AngleMin: -3, AngleMax: 3, AngleIncrement: 1e-12, UpdateRate: 1, RangeMin: 0.1}, nil)
	assert.Equal(t, MaxLaserReadings, s.ReadingCount())

	s.Tick(2)
	require.Len(t, r.out, 1)
	assert.Len(t, r.out[0].msg.(*msgs.LaserScan).Ranges, MaxLaserReadings)
}

type fixedRanges []float64

func (f fixedRanges) Scan(_ string, _, _ float64, n int, _ float64) []float64 {
	if n < len(f) {
		return f[:n]
	}
	return f
}

func TestLaserScanClampsAndPads(t *testing.T) {
	r := newRecorder()
	cfg := LaserConfig{
		Frame: "laser", Range: 5, AngleMin: -1, AngleMax: 1, AngleIncrement: 0.5,
		UpdateRate: 10, RangeMin: 0.1,
	}
	s := NewLaserScanSensor(r, log.NewNop(), "laser", ScanTopic("sim_1", "jackal"), "jackal/laser", cfg,
		fixedRanges{0.05, 1, 6, math.NaN()})
	require.Equal(t, 5, s.ReadingCount())
	assert.Equal(t, msgs.LaserScanName, r.registered["sim_1/jackal/scan"])

	s.Tick(0.05)
	assert.Empty(t, r.out)
	s.Tick(0.2)
	require.Len(t, r.out, 1)

	scan := r.out[0].msg.(*msgs.LaserScan)
	inf := float32(math.Inf(1))
	assert.Equal(t, msgs.Ranges{inf, 1, inf, inf, inf}, scan.Ranges)
	assert.Equal(t, "jackal/laser", scan.Header.FrameID)
	assert.Equal(t, uint32(1), scan.Header.Seq)
	assert.InDelta(t, 0.2, scan.Header.Stamp.Seconds(), 1e-9)
	assert.Equal(t, float32(5), scan.RangeMax)
}

func TestLaserScanWithoutSource(t *testing.T) {
	r := newRecorder()
	s := NewLaserScanSensor(r, log.NewNop(), "laser", "t", "f",
		LaserConfig{Range: 1, AngleMin: 0, AngleMax: 0, AngleIncrement: 0.1, UpdateRate: 1, RangeMin: 0.1}, nil)
	s.Tick(2)
	require.Len(t, r.out, 1)
	assert.Len(t, r.out[0].msg.(*msgs.LaserScan).Ranges, 1)
	assert.True(t, math.IsInf(float64(r.out[0].msg.(*msgs.LaserScan).Ranges[0]), 1))
}

type poseTable map[string]physics.Pose

func (p poseTable) State(name string) (physics.Pose, physics.Twist, bool) {
	pose, ok := p[name]
	return pose, physics.Twist{Linear: physics.V3(1, 0, 0)}, ok
}

func TestStatePublisher(t *testing.T) {
	r := newRecorder()
	poses := poseTable{"jackal": {Position: physics.V3(1, 2, 0), Orientation: physics.Identity}}
	s := NewStatePublisher(r, log.NewNop(), "jackal", StateTopic("sim_1", "jackal"), DefaultPublishRate, poses)

	s.Tick(0.1)
	require.Len(t, r.out, 1)
	state := r.out[0].msg.(*msgs.RobotState)
	assert.Equal(t, "jackal", state.Name)
	assert.Equal(t, 2.0, state.Pose.Position.Y)
	assert.Equal(t, 1.0, state.Twist.Linear.X)

	delete(poses, "jackal")
	s.Tick(0.2)
	assert.Len(t, r.out, 1)
}
