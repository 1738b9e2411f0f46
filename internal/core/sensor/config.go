package sensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrNotNumeric   = errors.New("not a number")
	ErrBadVector    = errors.New("expected a list of 3 numbers")
	ErrBadValue     = errors.New("invalid value")
	ErrTooManyRays  = errors.New("too many readings per scan")
)

// FieldError names the configuration key that failed to parse.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *FieldError) Unwrap() error { return e.Err }

// FieldErrors flattens an error returned by the Parse functions.
func FieldErrors(err error) []*FieldError {
	if err == nil {
		return nil
	}
	var out []*FieldError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, FieldErrors(e)...)
		}
		return out
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		out = append(out, fe)
	}
	return out
}

// ColliderPatch holds the collider fields that parsed. Nil fields keep their
// previous value when applied.
type ColliderPatch struct {
	Height   *float64
	Radius   *float64
	Position *physics.Vec3
}

func (p ColliderPatch) Apply(c physics.Capsule) physics.Capsule {
	if p.Height != nil {
		c.Height = *p.Height
	}
	if p.Radius != nil {
		c.Radius = *p.Radius
	}
	if p.Position != nil {
		c.Center = *p.Position
	}
	return c
}

// ParseColliderConfig reads height, radius and position. Every key is tried;
// the returned error joins one *FieldError per failing key.
func ParseColliderConfig(config map[string]any) (ColliderPatch, error) {
	var (
		patch ColliderPatch
		errs  []error
	)

	if h, err := floatField(config, "height"); err != nil {
		errs = append(errs, err)
	} else {
		patch.Height = &h
	}

	if r, err := floatField(config, "radius"); err != nil {
		errs = append(errs, err)
	} else {
		patch.Radius = &r
	}

	if raw, ok := config["position"]; !ok {
		errs = append(errs, &FieldError{Field: "position", Err: ErrMissingField})
	} else if v, err := toVec3(raw); err != nil {
		errs = append(errs, &FieldError{Field: "position", Err: err})
	} else {
		patch.Position = &v
	}

	return patch, errors.Join(errs...)
}

// LaserConfig is the Laser plugin block of a robot model.
type LaserConfig struct {
	Frame          string
	Range          float64
	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	UpdateRate     float64
	RangeMin       float64
}

// ParseLaserConfig reads a Laser plugin block. frame, range and the angle
// block are required; update_rate and range_min default.
func ParseLaserConfig(config map[string]any) (LaserConfig, error) {
	cfg := LaserConfig{UpdateRate: DefaultLaserRate, RangeMin: DefaultRangeMin}
	var errs []error

	if frame, ok := config["frame"]; !ok {
		errs = append(errs, &FieldError{Field: "frame", Err: ErrMissingField})
	} else if s, isStr := frame.(string); !isStr || s == "" {
		errs = append(errs, &FieldError{Field: "frame", Err: ErrBadValue})
	} else {
		cfg.Frame = s
	}

	if r, err := floatField(config, "range"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Range = r
	}

	angle, ok := toMap(config["angle"])
	if !ok {
		errs = append(errs, &FieldError{Field: "angle", Err: ErrMissingField})
	} else {
		for _, f := range []struct {
			key string
			dst *float64
		}{
			{"min", &cfg.AngleMin},
			{"max", &cfg.AngleMax},
			{"increment", &cfg.AngleIncrement},
		} {
			v, err := floatField(angle, f.key)
			if err != nil {
				var fe *FieldError
				if errors.As(err, &fe) {
					fe.Field = "angle." + fe.Field
				}
				errs = append(errs, err)
				continue
			}
			*f.dst = v
		}
		if _, err := floatField(angle, "increment"); err == nil {
			switch {
			case cfg.AngleIncrement <= 0:
				errs = append(errs, &FieldError{Field: "angle.increment", Err: ErrBadValue})
			case readingCount(cfg.AngleMin, cfg.AngleMax, cfg.AngleIncrement) > MaxLaserReadings:
				errs = append(errs, &FieldError{Field: "angle.increment", Err: ErrTooManyRays})
				cfg.AngleIncrement = 0
			}
		}
	}

	if _, ok = config["update_rate"]; ok {
		if r, err := floatField(config, "update_rate"); err != nil {
			errs = append(errs, err)
		} else {
			cfg.UpdateRate = r
		}
	}
	if _, ok = config["range_min"]; ok {
		if r, err := floatField(config, "range_min"); err != nil {
			errs = append(errs, err)
		} else {
			cfg.RangeMin = r
		}
	}

	return cfg, errors.Join(errs...)
}

func floatField(config map[string]any, key string) (float64, error) {
	raw, ok := config[key]
	if !ok || raw == nil {
		return 0, &FieldError{Field: key, Err: ErrMissingField}
	}
	v, err := toFloat(raw)
	if err != nil {
		return 0, &FieldError{Field: key, Err: err}
	}
	return v, nil
}

func toFloat(raw any) (float64, error) {
	var v float64
	switch n := raw.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n)
		}
		v = f
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint64:
		v = float64(n)
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
	}
	return v, nil
}

func toVec3(raw any) (physics.Vec3, error) {
	var items []any
	switch l := raw.(type) {
	case []any:
		items = l
	case []string:
		for _, s := range l {
			items = append(items, s)
		}
	case []float64:
		for _, f := range l {
			items = append(items, f)
		}
	default:
		return physics.Vec3{}, ErrBadVector
	}
	if len(items) != 3 {
		return physics.Vec3{}, ErrBadVector
	}
	var xyz [3]float64
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return physics.Vec3{}, fmt.Errorf("%w: element %d: %v", ErrBadVector, i, err)
		}
		xyz[i] = f
	}
	return physics.V3(xyz[0], xyz[1], xyz[2]), nil
}

func toMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}
