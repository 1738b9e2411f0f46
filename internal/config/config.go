// Package config loads simulation scenarios from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/protocol"
	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/sensor"
	"github.com/zeusync/arenasim/internal/core/system"
	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

const (
	EnvNamespace = "ARENA_SIM_NAMESPACE"
	EnvSetupPath = "ARENA_SETUP_PATH"
	EnvLogLevel  = "ARENA_LOG_LEVEL"
	EnvFrameRate = "ARENA_FRAME_RATE"
	EnvAPIToken  = "ARENA_API_TOKEN"
)

var (
	ErrUnknownFormat = errors.New("unknown scenario format")
	ErrInvalid       = errors.New("invalid scenario")
)

// RobotSpec is a robot spawned at startup. URDFFile is resolved relative to
// the scenario file.
type RobotSpec struct {
	Namespace string  `yaml:"namespace" toml:"namespace"`
	Model     string  `yaml:"model" toml:"model"`
	URDF      string  `yaml:"urdf" toml:"urdf"`
	URDFFile  string  `yaml:"urdf_file" toml:"urdf_file"`
	X         float64 `yaml:"x" toml:"x"`
	Y         float64 `yaml:"y" toml:"y"`
	Z         float64 `yaml:"z" toml:"z"`
	Yaw       float64 `yaml:"yaw" toml:"yaw"`

	SafeDist []SafeDistSpec `yaml:"safe_dist" toml:"safe_dist"`
}

type SafeDistSpec struct {
	Distance float64 `yaml:"distance" toml:"distance"`
	Topic    string  `yaml:"topic" toml:"topic"`
	Ped      bool    `yaml:"ped" toml:"ped"`
	Obs      bool    `yaml:"obs" toml:"obs"`
}

// Scenario is the top level configuration of a run.
type Scenario struct {
	Namespace string  `yaml:"namespace" toml:"namespace"`
	SetupPath string  `yaml:"setup_path" toml:"setup_path"`
	LogLevel  string  `yaml:"log_level" toml:"log_level"`
	FrameRate float64 `yaml:"frame_rate" toml:"frame_rate"`
	StateRate float64 `yaml:"state_rate" toml:"state_rate"`
	APIAddr   string  `yaml:"api_addr" toml:"api_addr"`
	APIToken  string  `yaml:"api_token" toml:"api_token"`

	Transport protocol.Config          `yaml:"transport" toml:"transport"`
	Robots    []RobotSpec              `yaml:"robots" toml:"robots"`
	Contacts  []system.ScriptedContact `yaml:"contacts" toml:"contacts"`

	dir string
}

// Default is the scenario used when no file is given.
func Default() Scenario {
	return Scenario{
		SetupPath: "../simulation-setup",
		LogLevel:  "info",
		FrameRate: system.DefaultFrameRate,
		StateRate: sensor.DefaultPublishRate,
		APIAddr:   ":8080",
		Transport: protocol.DefaultConfig(),
	}
}

// Load reads path as YAML (.yaml, .yml) or TOML (.toml), applies environment
// overrides and validates the result.
func Load(path string) (Scenario, error) {
	sc := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sc)
	case ".toml":
		err = toml.Unmarshal(data, &sc)
	default:
		return sc, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	if err = sc.ApplyEnv(os.LookupEnv); err != nil {
		return sc, err
	}
	return sc, sc.Validate()
}

// ApplyEnv overrides fields from the environment.
func (s *Scenario) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvNamespace); ok {
		s.Namespace = v
	}
	if v, ok := lookup(EnvSetupPath); ok && v != "" {
		s.SetupPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		s.LogLevel = v
	}
	if v, ok := lookup(EnvAPIToken); ok {
		s.APIToken = v
	}
	if v, ok := lookup(EnvFrameRate); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, EnvFrameRate, v)
		}
		s.FrameRate = f
	}
	return nil
}

func (s *Scenario) Validate() error {
	var errs []error
	if s.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: frame_rate must be positive", ErrInvalid))
	}
	seen := make(map[string]bool, len(s.Robots))
	for i, r := range s.Robots {
		switch {
		case r.Namespace == "":
			errs = append(errs, fmt.Errorf("%w: robots[%d] has no namespace", ErrInvalid, i))
		case seen[r.Namespace]:
			errs = append(errs, fmt.Errorf("%w: robot %q listed twice", ErrInvalid, r.Namespace))
		}
		seen[r.Namespace] = true
		if r.URDF == "" && r.URDFFile == "" {
			errs = append(errs, fmt.Errorf("%w: robot %q has no urdf", ErrInvalid, r.Namespace))
		}
	}
	for i, c := range s.Contacts {
		if c.Event != "enter" && c.Event != "exit" {
			errs = append(errs, fmt.Errorf("%w: contacts[%d] event %q", ErrInvalid, i, c.Event))
		}
	}
	return errors.Join(errs...)
}

// TopicPrefix is "/" + namespace, or empty without a namespace.
func (s *Scenario) TopicPrefix() string {
	if s.Namespace == "" {
		return ""
	}
	return "/" + strings.Trim(s.Namespace, "/")
}

// SpawnRequest resolves r into a request, reading URDFFile when set.
func (s *Scenario) SpawnRequest(r RobotSpec) (robot.SpawnRequest, error) {
	urdf := r.URDF
	if r.URDFFile != "" {
		path := r.URDFFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return robot.SpawnRequest{}, fmt.Errorf("robot %s urdf: %w", r.Namespace, err)
		}
		urdf = string(data)
	}
	pose := physics.Pose{Position: physics.V3(r.X, r.Y, r.Z), Orientation: physics.QuatFromYaw(r.Yaw)}
	return robot.SpawnRequest{
		Namespace: r.Namespace,
		Model:     r.Model,
		URDF:      urdf,
		Pose:      msgs.PoseFrom(pose),
	}, nil
}

func (r RobotSpec) SafeDistRequests() []robot.SafeDistRequest {
	out := make([]robot.SafeDistRequest, 0, len(r.SafeDist))
	for _, sd := range r.SafeDist {
		out = append(out, robot.SafeDistRequest{
			Robot:    r.Namespace,
			SafeDist: sd.Distance,
			Topic:    sd.Topic,
			Ped:      sd.Ped,
			Obs:      sd.Obs,
		})
	}
	return out
}
