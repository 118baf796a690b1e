package core

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

type GraphicsConfig struct {
	// vulkan, dx12 or metal
	Backend            string `toml:"backend" yaml:"backend"`
	FramesInFlight     int    `toml:"frames_in_flight" yaml:"frames_in_flight"`
	DescriptorPoolSize int    `toml:"descriptor_pool_size" yaml:"descriptor_pool_size"`
	FenceTimeoutMs     int    `toml:"fence_timeout_ms" yaml:"fence_timeout_ms"`
}

// ToolPaths overrides the executables used by the shader build. Each value
// may be a full command line.
type ToolPaths struct {
	Glslc      string `toml:"glslc" yaml:"glslc"`
	SpirvCross string `toml:"spirv_cross" yaml:"spirv_cross"`
	Dxc        string `toml:"dxc" yaml:"dxc"`
	Xcrun      string `toml:"xcrun" yaml:"xcrun"`
}

type ShaderToolConfig struct {
	Targets       []string          `toml:"targets" yaml:"targets"`
	IncludeDirs   []string          `toml:"include_dirs" yaml:"include_dirs"`
	Defines       map[string]string `toml:"defines" yaml:"defines"`
	Optimization  string            `toml:"optimization" yaml:"optimization"`
	FlipVertY     bool              `toml:"flip_vert_y" yaml:"flip_vert_y"`
	Workers       int               `toml:"workers" yaml:"workers"`
	LockTimeoutMs int               `toml:"lock_timeout_ms" yaml:"lock_timeout_ms"`
	Tools         ToolPaths         `toml:"tools" yaml:"tools"`
}

type Config struct {
	Log      LogConfig        `toml:"log" yaml:"log"`
	Graphics GraphicsConfig   `toml:"graphics" yaml:"graphics"`
	Shaders  ShaderToolConfig `toml:"shaders" yaml:"shaders"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Graphics: GraphicsConfig{
			Backend:            "vulkan",
			FramesInFlight:     3,
			DescriptorPoolSize: 1024,
			FenceTimeoutMs:     0,
		},
		Shaders: ShaderToolConfig{
			Targets:       []string{"vulkan"},
			Defines:       map[string]string{},
			Optimization:  "performance",
			Workers:       runtime.NumCPU(),
			LockTimeoutMs: 10000,
		},
	}
}

// LoadConfig reads a TOML or YAML file (by extension) on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindIOFailure, "LoadConfig", err, "reading %s", path)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig decodes data according to ext (".toml", ".yaml" or ".yml").
func ParseConfig(data []byte, ext string) (*Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, WrapError(KindIOFailure, "ParseConfig", err, "invalid yaml")
		}
	default:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, WrapError(KindIOFailure, "ParseConfig", err, "invalid toml")
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv lets the *_PATH environment variables override tool paths.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GLSLC_PATH"); v != "" {
		c.Shaders.Tools.Glslc = v
	}
	if v := os.Getenv("SPIRV_CROSS_PATH"); v != "" {
		c.Shaders.Tools.SpirvCross = v
	}
	if v := os.Getenv("DXC_PATH"); v != "" {
		c.Shaders.Tools.Dxc = v
	}
	if v := os.Getenv("XCRUN_PATH"); v != "" {
		c.Shaders.Tools.Xcrun = v
	}
}

// Encode writes the config back as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
