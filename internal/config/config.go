package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"camserver/internal/logger"
)

type Config struct {
	Host          string
	Port          int
	Width         int
	Height        int
	Framerate     int
	CameraDevice  string
	AuthUser      string
	AuthPass      string
	AuthEnabled   bool
	LogLevel      string
	LogDirectory  string
	StaticDir     string
	TLSCertFile   string
	TLSKeyFile    string
	MotionEnabled bool
	// MotionThreshold is used both as the per-pixel intensity delta and as the
	// changed-pixel percentage that triggers motion.
	MotionThreshold   float64
	MotionCooldown    time.Duration
	SnapshotLimit     int
	SnapshotDirectory string // empty disables the disk archive
	DatabasePath      string // empty disables the event log
	FlushInterval     time.Duration
}

// Load reads .env (if present), the environment and finally the command
// line arguments, then validates the result.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.ParseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults. Motion,
// interval and resolution settings that are set but malformed are reported
// instead of falling back to the default.
func FromEnv() (*Config, error) {
	var errs []error

	width, height, err := ParseResolution(getEnv("RESOLUTION", "640x480"))
	if err != nil {
		errs = append(errs, fmt.Errorf("RESOLUTION: %w", err))
	}
	threshold, err := getEnvAsFloat("MOTION_THRESHOLD", 5.0)
	errs = append(errs, err)
	cooldown, err := getEnvAsSeconds("MOTION_COOLDOWN", 10*time.Second)
	errs = append(errs, err)
	flush, err := getEnvAsSeconds("FLUSH_INTERVAL", 30*time.Second)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	user := os.Getenv("WEBCAM_USER")
	pass := os.Getenv("WEBCAM_PASS")

	return &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnvAsInt("PORT", 8000),
		Width:             width,
		Height:            height,
		Framerate:         getEnvAsInt("FRAMERATE", 30),
		CameraDevice:      getEnv("CAMERA_DEVICE", "0"),
		AuthUser:          user,
		AuthPass:          pass,
		AuthEnabled:       user != "" && pass != "",
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		LogDirectory:      getEnv("LOG_DIR", ""),
		StaticDir:         getEnv("STATIC_DIR", "."),
		TLSCertFile:       getEnv("TLS_CERT", ""),
		TLSKeyFile:        getEnv("TLS_KEY", ""),
		MotionEnabled:     getEnvAsBool("MOTION_ENABLED", true),
		MotionThreshold:   threshold,
		MotionCooldown:    cooldown,
		SnapshotLimit:     getEnvAsInt("SNAPSHOT_LIMIT", 10),
		SnapshotDirectory: getEnv("SNAPSHOT_DIR", ""),
		DatabasePath:      getEnv("DB_PATH", ""),
		FlushInterval:     flush,
	}, nil
}

// ParseFlags overrides fields with command line flags.
func (c *Config) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("camserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	resolution := fmt.Sprintf("%dx%d", c.Width, c.Height)
	noAuth := false

	fs.StringVar(&c.Host, "host", c.Host, "host to bind to")
	fs.IntVar(&c.Port, "port", c.Port, "port to bind to")
	fs.StringVar(&resolution, "resolution", resolution, "camera resolution WIDTHxHEIGHT")
	fs.IntVar(&c.Framerate, "framerate", c.Framerate, "camera framerate")
	fs.StringVar(&c.CameraDevice, "device", c.CameraDevice, "camera device index or path")
	fs.BoolVar(&noAuth, "no-auth", false, "disable authentication even if WEBCAM_USER/WEBCAM_PASS are set")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logging level (DEBUG, INFO, WARNING, ERROR)")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "directory served as static files")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	w, h, err := ParseResolution(resolution)
	if err != nil {
		return err
	}
	c.Width, c.Height = w, h

	if noAuth {
		c.AuthEnabled = false
	}
	return nil
}

// Validate rejects out of range settings instead of clamping them.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("framerate must be positive, got %d", c.Framerate)
	}
	if !(c.MotionThreshold >= 0 && c.MotionThreshold <= 100) {
		return fmt.Errorf("motion threshold must be within [0, 100], got %v", c.MotionThreshold)
	}
	if c.MotionCooldown < 0 {
		return fmt.Errorf("motion cooldown must not be negative, got %v", c.MotionCooldown)
	}
	if c.SnapshotLimit < 1 {
		return fmt.Errorf("snapshot limit must be at least 1, got %d", c.SnapshotLimit)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %v", c.FlushInterval)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Resolution returns the configured resolution as WIDTHxHEIGHT.
func (c *Config) Resolution() string {
	return fmt.Sprintf("%dx%d", c.Width, c.Height)
}

// TLSEnabled reports whether the server should terminate TLS itself.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// ParseResolution parses WIDTHxHEIGHT, e.g. 640x480.
func ParseResolution(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution format %q, use WIDTHxHEIGHT (e.g. 640x480)", s)
	}
	w, werr := strconv.Atoi(parts[0])
	h, herr := strconv.Atoi(parts[1])
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution format %q, use WIDTHxHEIGHT (e.g. 640x480)", s)
	}
	return w, h, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: %q is not a finite number", key, value)
	}
	return f, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsSeconds reads a number of seconds, fractions allowed.
func getEnvAsSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	if os.Getenv(key) == "" {
		return defaultValue, nil
	}
	f, err := getEnvAsFloat(key, 0)
	if err != nil {
		return 0, err
	}
	if math.Abs(f) > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("%s: %v seconds is out of range", key, f)
	}
	return time.Duration(f * float64(time.Second)), nil
}
