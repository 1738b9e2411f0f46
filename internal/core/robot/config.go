package robot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var ErrConfigNotFound = errors.New("config file not found")

// ModelConfig is {setup}/entities/robots/{model}/{model}.model.yaml.
type ModelConfig struct {
	Bodies  []map[string]any `yaml:"bodies"`
	Plugins []map[string]any `yaml:"plugins"`
}

// Plugin returns the first plugin whose type is typ.
func (c ModelConfig) Plugin(typ string) (map[string]any, bool) {
	for _, p := range c.Plugins {
		if t, ok := p["type"].(string); ok && t == typ {
			return p, true
		}
	}
	return nil, false
}

// UnityConfig is {setup}/entities/robots/{model}/unity/unity_params.yaml.
type UnityConfig struct {
	Components map[string]map[string]any `yaml:"components"`
}

func (c UnityConfig) Collider() (map[string]any, bool) {
	m, ok := c.Components["collider"]
	return m, ok && m != nil
}

func ModelConfigPath(setupPath, model string) string {
	return filepath.Join(setupPath, "entities", "robots", model, model+".model.yaml")
}

func UnityConfigPath(setupPath, model string) string {
	return filepath.Join(setupPath, "entities", "robots", model, "unity", "unity_params.yaml")
}

func LoadModelConfig(setupPath, model string) (ModelConfig, error) {
	var c ModelConfig
	err := loadYAML(ModelConfigPath(setupPath, model), &c)
	return c, err
}

func LoadUnityConfig(setupPath, model string) (UnityConfig, error) {
	var c UnityConfig
	err := loadYAML(UnityConfigPath(setupPath, model), &c)
	return c, err
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}
	if err = yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
