package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultWidth is the default width of a complex data word.
	DefaultWidth = 32

	// DefaultSendNth makes the test benches offer a sample every second
	// cycle.
	DefaultSendNth = 2

	// DefaultBuildDir is where generated files go.
	DefaultBuildDir = "build"

	// DefaultModelLatency is the pipeline depth of the behavioral models.
	DefaultModelLatency = 2
)

// IcarusSettings names the Icarus Verilog tools.
type IcarusSettings struct {
	Compiler string `yaml:"compiler"`
	Runtime  string `yaml:"runtime"`
}

// B100Settings holds the commands for the USRP B100 flow. Arguments may use
// the placeholders {dir}, {module}, {image} and {steps}.
type B100Settings struct {
	Build           []string `yaml:"build"`
	Loader          []string `yaml:"loader"`
	MinFreeMemoryMB uint64   `yaml:"min_free_memory_mb"`
}

// ArtifactSettings selects where built executables and images are cached.
type ArtifactSettings struct {
	Dir        string `yaml:"dir"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
}

// Settings collects everything the harness needs to know about its
// environment.
type Settings struct {
	BuildDir       string           `yaml:"builddir"`
	HDLDir         string           `yaml:"hdldir"`
	DefaultWidth   int              `yaml:"default_width"`
	DefaultSendNth int              `yaml:"default_sendnth"`
	ModelLatency   int              `yaml:"model_latency"`
	Defines        map[string]any   `yaml:"defines"`
	Icarus         IcarusSettings   `yaml:"icarus"`
	B100           B100Settings     `yaml:"b100"`
	Artifacts      ArtifactSettings `yaml:"artifacts"`
	LogLevel       string           `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		BuildDir:       DefaultBuildDir,
		DefaultWidth:   DefaultWidth,
		DefaultSendNth: DefaultSendNth,
		ModelLatency:   DefaultModelLatency,
		Defines:        map[string]any{"DEBUG": false},
		Icarus: IcarusSettings{
			Compiler: "iverilog",
			Runtime:  "vvp",
		},
		B100: B100Settings{
			Build:           []string{"make", "-C", "{dir}", "{module}.bin"},
			MinFreeMemoryMB: 2048,
		},
		LogLevel: "info",
	}
}

// Load reads settings from a YAML file on top of the defaults and applies
// the environment overrides. An empty path only applies the environment.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("reading settings: %w", err)
		}

		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parsing settings %s: %w", path, err)
		}
	}

	s.ApplyEnv()

	if err := s.Validate(); err != nil {
		return s, err
	}

	return s, nil
}

// envOr returns the trimmed env value or def when empty.
func envOr(key, def string) string {
	v := strings.TrimSpace(strings.Trim(os.Getenv(key), `"`))
	if v == "" {
		return def
	}

	return v
}

// ApplyEnv overrides settings from SDRBENCH_* environment variables.
func (s *Settings) ApplyEnv() {
	s.BuildDir = envOr("SDRBENCH_BUILDDIR", s.BuildDir)
	s.HDLDir = envOr("SDRBENCH_HDLDIR", s.HDLDir)
	s.Icarus.Compiler = envOr("SDRBENCH_ICARUS", s.Icarus.Compiler)
	s.Icarus.Runtime = envOr("SDRBENCH_VVP", s.Icarus.Runtime)
	s.Artifacts.Dir = envOr("SDRBENCH_ARTIFACT_DIR", s.Artifacts.Dir)
	s.Artifacts.S3Bucket = envOr("SDRBENCH_S3_BUCKET", s.Artifacts.S3Bucket)
	s.Artifacts.S3Endpoint = envOr("SDRBENCH_S3_ENDPOINT", s.Artifacts.S3Endpoint)
	s.LogLevel = envOr("SDRBENCH_LOG_LEVEL", s.LogLevel)

	if v := envOr("SDRBENCH_B100_BUILD", ""); v != "" {
		s.B100.Build = strings.Fields(v)
	}

	if v := envOr("SDRBENCH_B100_LOADER", ""); v != "" {
		s.B100.Loader = strings.Fields(v)
	}

	if v := envOr("SDRBENCH_SENDNTH", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.DefaultSendNth = n
		}
	}
}

// Validate checks the settings for values no test bench can work with.
func (s Settings) Validate() error {
	var errs []error

	if s.DefaultWidth <= 0 || s.DefaultWidth%2 != 0 {
		errs = append(errs, fmt.Errorf("default_width must be a positive even number, got %d", s.DefaultWidth))
	}

	if s.DefaultSendNth < 1 {
		errs = append(errs, fmt.Errorf("default_sendnth must be at least 1, got %d", s.DefaultSendNth))
	}

	if s.ModelLatency < 0 {
		errs = append(errs, fmt.Errorf("model_latency must not be negative, got %d", s.ModelLatency))
	}

	if s.BuildDir == "" {
		errs = append(errs, errors.New("builddir must not be empty"))
	}

	return errors.Join(errs...)
}

// UpdatedDefines returns the default HDL defines with overrides applied.
// The settings are not modified.
func (s Settings) UpdatedDefines(overrides map[string]any) map[string]any {
	defines := make(map[string]any, len(s.Defines)+len(overrides))
	maps.Copy(defines, s.Defines)
	maps.Copy(defines, overrides)

	return defines
}
