package ponggame

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BaseConfig is the tunable game configuration. It is loaded once at startup
// and turned into an immutable Config per room.
type BaseConfig struct {
	FieldWidth  float64 `yaml:"field_width"`
	FieldHeight float64 `yaml:"field_height"`
	PaddleRatio float64 `yaml:"paddle_ratio"` // paddle height as a fraction of field height
	PaddleSpeed float64 `yaml:"paddle_speed"`
	PaddleAccel float64 `yaml:"paddle_accel"`
	MaxScore    int     `yaml:"max_score"`
	TickMs      int     `yaml:"tick_ms"`
}

// DefaultBaseConfig returns the canonical game tuning.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		FieldWidth:  40,
		FieldHeight: 30,
		PaddleRatio: 0.2,
		PaddleSpeed: 0.5,
		PaddleAccel: 0.1,
		MaxScore:    5,
		TickMs:      16,
	}
}

// LoadBaseConfig reads a yaml config from path, or returns the defaults when
// path is empty.
func LoadBaseConfig(path string) (BaseConfig, error) {
	cfg := DefaultBaseConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Config holds the derived physics constants for one room. Immutable once
// built; shared verbatim with client-side prediction.
type Config struct {
	FieldWidth  float64
	FieldHeight float64
	HalfWidth   float64
	HalfHeight  float64

	PaddleSize  float64
	PaddleSpeed float64
	PaddleAccel float64
	// PaddleLimit is the largest |y| a paddle center may reach.
	PaddleLimit float64
	// PaddleInset is the distance of each paddle plane from its side wall.
	PaddleInset float64

	MaxScore     int
	TickInterval time.Duration
}

// BuildConfig derives the physics constants from a base configuration. Pure;
// the same base always yields the same Config.
func BuildConfig(base BaseConfig) Config {
	paddleSize := base.FieldHeight * base.PaddleRatio
	return Config{
		FieldWidth:   base.FieldWidth,
		FieldHeight:  base.FieldHeight,
		HalfWidth:    base.FieldWidth / 2,
		HalfHeight:   base.FieldHeight / 2,
		PaddleSize:   paddleSize,
		PaddleSpeed:  base.PaddleSpeed,
		PaddleAccel:  base.PaddleAccel,
		PaddleLimit:  base.FieldHeight/2 - paddleSize/2,
		PaddleInset:  paddleInset,
		MaxScore:     base.MaxScore,
		TickInterval: time.Duration(base.TickMs) * time.Millisecond,
	}
}
