package msgs

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/zeusync/arenasim/internal/core/systems/physics"
	"github.com/zeusync/arenasim/pkg/encoding"
)

const (
	CollisionName  = "unity_msgs/Collision"
	LaserScanName  = "sensor_msgs/LaserScan"
	RobotStateName = "pedsim_msgs/RobotState"
)

// Time is a seconds/nanoseconds stamp.
type Time struct {
	Sec  uint32 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

// TimeFromSeconds converts simulation seconds. Negative input clamps to zero.
func TimeFromSeconds(s float64) Time {
	if s <= 0 {
		return Time{}
	}
	sec := math.Floor(s)
	return Time{Sec: uint32(sec), Nsec: uint32(math.Round((s - sec) * 1e9))}
}

func (t Time) Seconds() float64 { return float64(t.Sec) + float64(t.Nsec)/1e9 }

func (t Time) SerializeTo(w *encoding.Writer) {
	w.Uint32(t.Sec)
	w.Uint32(t.Nsec)
}

func (t *Time) DeserializeFrom(r *encoding.Reader) {
	t.Sec = r.Uint32()
	t.Nsec = r.Uint32()
}

type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

func (h Header) SerializeTo(w *encoding.Writer) {
	w.Uint32(h.Seq)
	h.Stamp.SerializeTo(w)
	w.String(h.FrameID)
}

func (h *Header) DeserializeFrom(r *encoding.Reader) {
	h.Seq = r.Uint32()
	h.Stamp.DeserializeFrom(r)
	h.FrameID = r.String()
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Vector3 Point

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

func PoseFrom(p physics.Pose) Pose {
	return Pose{
		Position:    Point{X: p.Position.Xv, Y: p.Position.Yv, Z: p.Position.Zv},
		Orientation: Quaternion{X: p.Orientation.X, Y: p.Orientation.Y, Z: p.Orientation.Z, W: p.Orientation.W},
	}
}

func (p Pose) Physics() physics.Pose {
	return physics.Pose{
		Position:    physics.V3(p.Position.X, p.Position.Y, p.Position.Z),
		Orientation: physics.Quat{X: p.Orientation.X, Y: p.Orientation.Y, Z: p.Orientation.Z, W: p.Orientation.W},
	}
}

func (p Pose) SerializeTo(w *encoding.Writer) {
	w.Float64(p.Position.X)
	w.Float64(p.Position.Y)
	w.Float64(p.Position.Z)
	w.Float64(p.Orientation.X)
	w.Float64(p.Orientation.Y)
	w.Float64(p.Orientation.Z)
	w.Float64(p.Orientation.W)
}

func (p *Pose) DeserializeFrom(r *encoding.Reader) {
	p.Position.X = r.Float64()
	p.Position.Y = r.Float64()
	p.Position.Z = r.Float64()
	p.Orientation.X = r.Float64()
	p.Orientation.Y = r.Float64()
	p.Orientation.Z = r.Float64()
	p.Orientation.W = r.Float64()
}

type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

func TwistFrom(t physics.Twist) Twist {
	return Twist{
		Linear:  Vector3{X: t.Linear.Xv, Y: t.Linear.Yv, Z: t.Linear.Zv},
		Angular: Vector3{X: t.Angular.Xv, Y: t.Angular.Yv, Z: t.Angular.Zv},
	}
}

func (t Twist) SerializeTo(w *encoding.Writer) {
	for _, v := range [...]float64{t.Linear.X, t.Linear.Y, t.Linear.Z, t.Angular.X, t.Angular.Y, t.Angular.Z} {
		w.Float64(v)
	}
}

func (t *Twist) DeserializeFrom(r *encoding.Reader) {
	t.Linear.X, t.Linear.Y, t.Linear.Z = r.Float64(), r.Float64(), r.Float64()
	t.Angular.X, t.Angular.Y, t.Angular.Z = r.Float64(), r.Float64(), r.Float64()
}

// Collision reports whether a contact sensor currently overlaps anything.
type Collision struct {
	InContact bool `json:"in_contact"`
}

func (*Collision) MessageName() string { return CollisionName }

func (c *Collision) SerializeTo(w *encoding.Writer) { w.Bool(c.InContact) }

func (c *Collision) DeserializeFrom(r *encoding.Reader) { c.InContact = r.Bool() }

// RobotState is the pose and velocity of a named robot.
type RobotState struct {
	Name  string `json:"name"`
	Pose  Pose   `json:"pose"`
	Twist Twist  `json:"twist"`
}

func (*RobotState) MessageName() string { return RobotStateName }

func (s *RobotState) SerializeTo(w *encoding.Writer) {
	w.String(s.Name)
	s.Pose.SerializeTo(w)
	s.Twist.SerializeTo(w)
}

func (s *RobotState) DeserializeFrom(r *encoding.Reader) {
	s.Name = r.String()
	s.Pose.DeserializeFrom(r)
	s.Twist.DeserializeFrom(r)
}

// Ranges is a float32 list whose non-finite entries encode as JSON null.
type Ranges []float32

func (rs Ranges) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range rs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (rs *Ranges) UnmarshalJSON(data []byte) error {
	var raw []*float32
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Ranges, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = float32(math.Inf(1))
			continue
		}
		out[i] = *v
	}
	*rs = out
	return nil
}

// LaserScan is a planar range scan. Angles are radians, ranges metres;
// readings outside [RangeMin, RangeMax] are +Inf.
type LaserScan struct {
	Header         Header  `json:"header"`
	AngleMin       float32 `json:"angle_min"`
	AngleMax       float32 `json:"angle_max"`
	AngleIncrement float32 `json:"angle_increment"`
	TimeIncrement  float32 `json:"time_increment"`
	ScanTime       float32 `json:"scan_time"`
	RangeMin       float32 `json:"range_min"`
	RangeMax       float32 `json:"range_max"`
	Ranges         Ranges  `json:"ranges"`
	Intensities    Ranges  `json:"intensities"`
}

func (*LaserScan) MessageName() string { return LaserScanName }

func (s *LaserScan) SerializeTo(w *encoding.Writer) {
	s.Header.SerializeTo(w)
	w.Float32(s.AngleMin)
	w.Float32(s.AngleMax)
	w.Float32(s.AngleIncrement)
	w.Float32(s.TimeIncrement)
	w.Float32(s.ScanTime)
	w.Float32(s.RangeMin)
	w.Float32(s.RangeMax)
	w.Float32s(s.Ranges)
	w.Float32s(s.Intensities)
}

func (s *LaserScan) DeserializeFrom(r *encoding.Reader) {
	s.Header.DeserializeFrom(r)
	s.AngleMin = r.Float32()
	s.AngleMax = r.Float32()
	s.AngleIncrement = r.Float32()
	s.TimeIncrement = r.Float32()
	s.ScanTime = r.Float32()
	s.RangeMin = r.Float32()
	s.RangeMax = r.Float32()
	s.Ranges = r.Float32s()
	s.Intensities = r.Float32s()
}
