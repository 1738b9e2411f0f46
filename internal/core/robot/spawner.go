package robot

import (
	"errors"
	"fmt"

	"github.com/zeusync/arenasim/internal/core/models"
	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
	"github.com/zeusync/arenasim/internal/core/sensor"
)

var (
	ErrEmptyNamespace    = errors.New("empty robot namespace")
	ErrSafeDistKind      = errors.New("exactly one of ped_safe_dist and obs_safe_dist must be set")
	ErrNoCollisionSensor = errors.New("robot has no collision sensor")
	ErrEmptyTopic        = errors.New("empty safe distance topic")
)

// SpawnRequest asks for a robot built from URDF. Model defaults to the URDF
// robot name and selects the model configuration directory.
type SpawnRequest struct {
	Namespace string    `json:"robot_namespace" yaml:"namespace" toml:"namespace"`
	Model     string    `json:"model_name" yaml:"model" toml:"model"`
	URDF      string    `json:"model_xml" yaml:"urdf" toml:"urdf"`
	Pose      msgs.Pose `json:"initial_pose" yaml:"pose" toml:"pose"`
}

// SafeDistRequest attaches an inflated contact sensor counting only
// pedestrians or only obstacles.
type SafeDistRequest struct {
	Robot    string  `json:"robot_name"`
	SafeDist float64 `json:"safe_dist"`
	Topic    string  `json:"safe_dist_topic"`
	Ped      bool    `json:"ped_safe_dist"`
	Obs      bool    `json:"obs_safe_dist"`
}

// PoseSink receives the initial pose of a spawned robot.
type PoseSink interface {
	sensor.PoseSource
	SetPose(name string, pose msgs.Pose)
}

type SpawnerConfig struct {
	// TopicPrefix is "/" + simulation namespace, or empty.
	TopicPrefix string
	SetupPath   string
	StateRate   float64
}

// Spawner builds robots and attaches their sensors.
type Spawner struct {
	config    SpawnerConfig
	publisher protocol.Publisher
	poses     PoseSink
	ranges    sensor.RangeSource
	logger    log.Log
}

func NewSpawner(config SpawnerConfig, publisher protocol.Publisher, poses PoseSink, ranges sensor.RangeSource, logger log.Log) *Spawner {
	if logger == nil {
		logger = log.Provide()
	}
	if config.StateRate <= 0 {
		config.StateRate = sensor.DefaultPublishRate
	}
	return &Spawner{
		config:    config,
		publisher: publisher,
		poses:     poses,
		ranges:    ranges,
		logger:    logger.With(log.String("component", "spawner")),
	}
}

func (s *Spawner) topic(ns, name string) string {
	return s.config.TopicPrefix + "/" + ns + "/" + name
}

// Spawn parses the URDF and attaches the state publisher, laser scan and
// collision sensor. Only an unusable request fails; missing configuration
// skips the affected sensor.
func (s *Spawner) Spawn(req SpawnRequest) (*Robot, error) {
	if req.Namespace == "" {
		return nil, ErrEmptyNamespace
	}
	desc, err := ParseURDF(req.URDF)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = desc.Model
	}

	root := models.NewEntity(req.Namespace)
	root.SetLocal(req.Pose.Physics())
	if err = root.AddChild(desc.Root); err != nil {
		return nil, err
	}
	r := &Robot{Namespace: req.Namespace, Model: model, Root: root}
	logger := s.logger.With(log.String("robot", req.Namespace), log.String("model", model))

	s.poses.SetPose(req.Namespace, req.Pose)
	state := sensor.NewStatePublisher(s.publisher, logger, req.Namespace,
		s.topic(req.Namespace, "state"), s.config.StateRate, s.poses)
	_, _ = root.SetComponent(StatePublisherName, state)

	s.attachLaser(r, model, logger)
	s.attachCollider(r, model, logger)

	logger.Info("Robot spawned", log.Int("sensors", len(r.Sensors())))
	return r, nil
}

func (s *Spawner) attachLaser(r *Robot, model string, logger log.Log) {
	config, err := LoadModelConfig(s.config.SetupPath, model)
	if err != nil {
		logger.Error("Robot model config unavailable, spawning without scan", log.Error(err))
		return
	}
	plugin, ok := config.Plugin("Laser")
	if !ok {
		logger.Error("Robot model config has no Laser plugin, spawning without scan")
		return
	}
	frame, _ := plugin["frame"].(string)
	if frame == "" {
		logger.Error("Laser plugin has no frame, spawning without scan")
		return
	}
	node, ok := r.Root.FindChild(frame)
	if !ok {
		logger.Error("Laser frame not found in robot, spawning without scan", log.String("frame", frame))
		return
	}

	laserConfig, err := sensor.ParseLaserConfig(plugin)
	for _, fe := range sensor.FieldErrors(err) {
		logger.Warn("Laser config field not applied", log.String("field", fe.Field), log.Error(fe.Err))
	}
	laserConfig.Frame = frame
	scan := sensor.NewLaserScanSensor(s.publisher, logger, LaserScanSensorName,
		s.topic(r.Namespace, "scan"), r.Namespace+"/"+frame, laserConfig, s.ranges)
	_, _ = node.SetComponent(LaserScanSensorName, scan)
}

func (s *Spawner) attachCollider(r *Robot, model string, logger log.Log) {
	config, err := LoadUnityConfig(s.config.SetupPath, model)
	if err != nil {
		logger.Error("Unity params unavailable, spawning without collision sensor", log.Error(err))
		return
	}
	collider, ok := config.Collider()
	if !ok {
		logger.Warn("Unity params do not specify a collider")
		return
	}

	cs := sensor.NewCollisionSensor(s.publisher, logger, sensor.CollisionOptions{
		Name:  CollisionSensorName,
		Topic: s.topic(r.Namespace, "collision"),
	})
	cs.Configure(collider)
	if err = attachSensorNode(r.Root, CollisionSensorName, cs); err != nil {
		logger.Error("Failed to attach collision sensor", log.Error(err))
	}
}

// AttachSafeDist adds or replaces a safe distance sensor. It returns false
// with an error when the request cannot be honoured.
func (s *Spawner) AttachSafeDist(r *Robot, req SafeDistRequest) (bool, error) {
	if req.Ped == req.Obs {
		return false, ErrSafeDistKind
	}
	if req.Topic == "" {
		return false, ErrEmptyTopic
	}
	base, ok := r.ContactSensor(CollisionSensorName)
	if !ok {
		return false, ErrNoCollisionSensor
	}

	name, tag := PedSafeDistSensorName, sensor.PedestrianTag
	if req.Obs {
		name, tag = ObsSafeDistSensorName, sensor.ObstacleTag
	}
	if _, replaced := r.Root.RemoveChild(name); replaced {
		s.logger.Info("Replacing safe distance sensor", log.String("robot", r.Namespace), log.String("sensor", name))
	}

	ss := sensor.NewCollisionSensor(s.publisher, s.logger.With(log.String("robot", r.Namespace)), sensor.CollisionOptions{
		Name:        name,
		Topic:       s.topic(r.Namespace, req.Topic),
		IncludeTags: []string{tag},
	})
	ss.SetCollider(base.Collider().Inflate(req.SafeDist))
	if err := attachSensorNode(r.Root, name, ss); err != nil {
		return false, fmt.Errorf("attach %s: %w", name, err)
	}
	return true, nil
}

func attachSensorNode(root *models.Entity, name string, s sensor.Sensor) error {
	node := models.NewEntity(name)
	if _, err := node.SetComponent(name, s); err != nil {
		return err
	}
	return root.AddChild(node)
}
