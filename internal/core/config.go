package core

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SlopeMetric selects how terrain slope scales edge costs.
type SlopeMetric int

const (
	SlopeNone SlopeMetric = iota
	SlopeAvg
	SlopeMax
	SlopeTriangle
)

func (m SlopeMetric) String() string {
	return [...]string{"none", "avg", "max", "triangle"}[m]
}

// UnmarshalYAML parses the metric from its config-file spelling.
func (m *SlopeMetric) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "none":
		*m = SlopeNone
	case "avg", "average":
		*m = SlopeAvg
	case "max":
		*m = SlopeMax
	case "triangle":
		*m = SlopeTriangle
	default:
		return fmt.Errorf("unknown slope metric %q", s)
	}
	return nil
}

// MarshalYAML emits the config-file spelling.
func (m SlopeMetric) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// TraversabilityConfig parameterizes both traversability layers.
type TraversabilityConfig struct {
	GridResolution     float64     `yaml:"grid_resolution"`
	RobotSizeX         float64     `yaml:"robot_size_x"`
	RobotSizeY         float64     `yaml:"robot_size_y"`
	RobotHeight        float64     `yaml:"robot_height"`
	SlopeLimit         float64     `yaml:"slope_limit"` // radians
	StepHeight         float64     `yaml:"step_height"`
	MaxRoll            float64     `yaml:"max_roll"`  // radians
	MaxPitch           float64     `yaml:"max_pitch"` // radians
	CostFunctionDist   float64     `yaml:"cost_function_dist"`
	SlopeMetric        SlopeMetric `yaml:"slope_metric"`
	SlopeMetricScale   float64     `yaml:"slope_metric_scale"`
	EnableInclineLimit bool        `yaml:"enable_incline_limit"`
	Parallel           bool        `yaml:"parallel"`
}

// Mobility describes the platform's kinematic capabilities and the cost
// multipliers of the motion types.
type Mobility struct {
	TranslationSpeed float64 `yaml:"translation_speed"` // m/s
	RotationSpeed    float64 `yaml:"rotation_speed"`    // rad/s

	MultiplierForward   int `yaml:"multiplier_forward"`
	MultiplierBackward  int `yaml:"multiplier_backward"`
	MultiplierLateral   int `yaml:"multiplier_lateral"`
	MultiplierPointTurn int `yaml:"multiplier_point_turn"`
}

// PrimitiveConfig parameterizes default primitive synthesis.
type PrimitiveConfig struct {
	NumAngles int `yaml:"num_angles"`
	// Reach is the maximum cell offset of generated straight motions.
	Reach int `yaml:"reach"`
}

// FrontierConfig weights the exploration candidate cost.
type FrontierConfig struct {
	WGoal               float64 `yaml:"w_goal"`
	WExplore            float64 `yaml:"w_explore"`
	WTravel             float64 `yaml:"w_travel"`
	MaxNeighborDistance float64 `yaml:"max_neighbor_distance"` // meters
	VisitRadius         int     `yaml:"visit_radius"`          // cells
}

// Config bundles all planner configuration sections.
type Config struct {
	Traversability TraversabilityConfig `yaml:"traversability"`
	Mobility       Mobility             `yaml:"mobility"`
	Primitives     PrimitiveConfig      `yaml:"primitives"`
	Frontier       FrontierConfig       `yaml:"frontier"`
}

// DefaultConfig returns a configuration suitable for a small skid-steer
// platform on a 0.1 m grid.
func DefaultConfig() Config {
	return Config{
		Traversability: TraversabilityConfig{
			GridResolution:     0.1,
			RobotSizeX:         0.5,
			RobotSizeY:         0.3,
			RobotHeight:        0.3,
			SlopeLimit:         math.Pi / 4,
			StepHeight:         0.15,
			MaxRoll:            math.Pi / 8,
			MaxPitch:           math.Pi / 4,
			CostFunctionDist:   0.3,
			SlopeMetric:        SlopeNone,
			SlopeMetricScale:   1.0,
			EnableInclineLimit: false,
			Parallel:           true,
		},
		Mobility: Mobility{
			TranslationSpeed:    0.5,
			RotationSpeed:       1.0,
			MultiplierForward:   1,
			MultiplierBackward:  2,
			MultiplierLateral:   3,
			MultiplierPointTurn: 2,
		},
		Primitives: PrimitiveConfig{NumAngles: 16, Reach: 2},
		Frontier: FrontierConfig{
			WGoal:               1.0,
			WExplore:            1.0,
			WTravel:             1.0,
			MaxNeighborDistance: 1.0,
			VisitRadius:         3,
		},
	}
}

// applyDefaults fills zero-valued numeric fields from DefaultConfig; the
// three frontier weights are filled only when all of them are zero. Boolean
// fields are left as they are.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Traversability.GridResolution <= 0 {
		c.Traversability.GridResolution = d.Traversability.GridResolution
	}
	if c.Traversability.RobotSizeX <= 0 {
		c.Traversability.RobotSizeX = d.Traversability.RobotSizeX
	}
	if c.Traversability.RobotSizeY <= 0 {
		c.Traversability.RobotSizeY = d.Traversability.RobotSizeY
	}
	if c.Traversability.RobotHeight <= 0 {
		c.Traversability.RobotHeight = d.Traversability.RobotHeight
	}
	if c.Traversability.SlopeLimit <= 0 {
		c.Traversability.SlopeLimit = d.Traversability.SlopeLimit
	}
	if c.Traversability.StepHeight <= 0 {
		c.Traversability.StepHeight = d.Traversability.StepHeight
	}
	if c.Traversability.MaxRoll <= 0 {
		c.Traversability.MaxRoll = d.Traversability.MaxRoll
	}
	if c.Traversability.MaxPitch <= 0 {
		c.Traversability.MaxPitch = d.Traversability.MaxPitch
	}
	if c.Traversability.CostFunctionDist <= 0 {
		c.Traversability.CostFunctionDist = d.Traversability.CostFunctionDist
	}
	if c.Traversability.SlopeMetricScale <= 0 {
		c.Traversability.SlopeMetricScale = d.Traversability.SlopeMetricScale
	}
	if c.Mobility.TranslationSpeed <= 0 {
		c.Mobility.TranslationSpeed = d.Mobility.TranslationSpeed
	}
	if c.Mobility.RotationSpeed <= 0 {
		c.Mobility.RotationSpeed = d.Mobility.RotationSpeed
	}
	if c.Mobility.MultiplierForward <= 0 {
		c.Mobility.MultiplierForward = d.Mobility.MultiplierForward
	}
	if c.Mobility.MultiplierBackward <= 0 {
		c.Mobility.MultiplierBackward = d.Mobility.MultiplierBackward
	}
	if c.Mobility.MultiplierLateral <= 0 {
		c.Mobility.MultiplierLateral = d.Mobility.MultiplierLateral
	}
	if c.Mobility.MultiplierPointTurn <= 0 {
		c.Mobility.MultiplierPointTurn = d.Mobility.MultiplierPointTurn
	}
	if c.Primitives.NumAngles <= 0 {
		c.Primitives.NumAngles = d.Primitives.NumAngles
	}
	if c.Primitives.Reach <= 0 {
		c.Primitives.Reach = d.Primitives.Reach
	}
	if c.Frontier.WGoal <= 0 && c.Frontier.WExplore <= 0 && c.Frontier.WTravel <= 0 {
		c.Frontier.WGoal = d.Frontier.WGoal
		c.Frontier.WExplore = d.Frontier.WExplore
		c.Frontier.WTravel = d.Frontier.WTravel
	}
	if c.Frontier.MaxNeighborDistance <= 0 {
		c.Frontier.MaxNeighborDistance = d.Frontier.MaxNeighborDistance
	}
	if c.Frontier.VisitRadius <= 0 {
		c.Frontier.VisitRadius = d.Frontier.VisitRadius
	}
}

// Validate checks invariants that would otherwise surface deep inside the
// planner.
func (c *Config) Validate() error {
	if c.Primitives.NumAngles%4 != 0 {
		return fmt.Errorf("num_angles must be a multiple of 4, got %d", c.Primitives.NumAngles)
	}
	return nil
}

// LoadConfig reads a YAML configuration file, applying defaults to missing
// numeric fields. Boolean fields missing from the file are false, so an
// absent parallel key disables parallel successor generation.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
