// Package config loads rtspwatch settings from ~/.rtspwatch/config.json,
// then applies RTSP_* environment overrides. Command-line flags are applied
// last by the binary.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Application modes.
const (
	ModeIntrusion = "intrusion"
	ModeSlides    = "slides"
	ModeAirDraw   = "airdraw"
	ModePinch     = "pinch"
)

// Modes lists every valid mode.
var Modes = []string{ModeIntrusion, ModeSlides, ModeAirDraw, ModePinch}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// RTSPConfig describes the camera stream. URL wins when set; otherwise the
// URL is assembled from the parts.
type RTSPConfig struct {
	URL  string `json:"url,omitempty"`
	User string `json:"user"`
	Pass string `json:"pass,omitempty"`
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
}

// Descriptor returns the stream URL to open.
func (r RTSPConfig) Descriptor() string {
	if r.URL != "" {
		return r.URL
	}
	if r.Host == "" {
		return ""
	}

	u := url.URL{
		Scheme: "rtsp",
		Host:   net.JoinHostPort(r.Host, strconv.Itoa(r.Port)),
		Path:   "/" + r.Path,
	}
	if r.User != "" {
		u.User = url.UserPassword(r.User, r.Pass)
	}
	return u.String()
}

// CaptureConfig controls the frame source.
type CaptureConfig struct {
	// Fallback is the local camera used when the stream cannot be opened.
	// Empty disables the fallback.
	Fallback     string `json:"fallback"`
	BackoffMs    int    `json:"backoff_ms"`
	StaleAfterMs int    `json:"stale_after_ms"`
}

// MotionConfig controls the idle/active processing rate.
type MotionConfig struct {
	Threshold float64 `json:"threshold_percent"`
	QuietMs   int     `json:"quiet_ms"`
	IdleFPS   int     `json:"idle_fps"`
	ActiveFPS int     `json:"active_fps"`
}

// IntrusionConfig controls person detection and alerting.
type IntrusionConfig struct {
	Model              string  `json:"model"`
	MinConfidence      float64 `json:"min_confidence"`
	ImageSize          int     `json:"image_size"`
	Tracking           bool    `json:"tracking"`
	SkipEveryN         int     `json:"skip_every_n"`
	SnapshotCooldownMs int     `json:"snapshot_cooldown_ms"`
	BlurFaces          bool    `json:"blur_faces"`
	FaceCascade        string  `json:"face_cascade"`
}

// SlidesConfig controls presentation gestures.
type SlidesConfig struct {
	HoldMs        int     `json:"hold_ms"`
	CooldownMs    int     `json:"cooldown_ms"`
	SwipeWindowMs int     `json:"swipe_window_ms"`
	SwipeMinDx    float64 `json:"swipe_min_dx"`
	SwipeMaxDy    float64 `json:"swipe_max_dy"`
}

// AirDrawConfig controls the drawing canvas and its HUD.
type AirDrawConfig struct {
	ToggleHoldMs     int     `json:"toggle_hold_ms"`
	ToggleCooldownMs int     `json:"toggle_cooldown_ms"`
	DwellMs          int     `json:"dwell_ms"`
	DwellCooldownMs  int     `json:"dwell_cooldown_ms"`
	Smoothing        float64 `json:"smoothing"`
	BrushThickness   int     `json:"brush_thickness"`
	EraserThickness  int     `json:"eraser_thickness"`
}

// PinchConfig controls pinch volume, brightness and mouse control.
type PinchConfig struct {
	On        float64 `json:"on"`
	Off       float64 `json:"off"`
	Smoothing float64 `json:"smoothing"`
	Step      float64 `json:"step"`
	Mouse     bool    `json:"mouse"`
}

// Config is the full application configuration.
type Config struct {
	Mode           string          `json:"mode"`
	Addr           string          `json:"addr"`
	DataDir        string          `json:"data_dir"`
	PluginDir      string          `json:"plugin_dir,omitempty"`
	FlipHorizontal bool            `json:"flip_horizontal"`
	RTSP           RTSPConfig      `json:"rtsp"`
	Capture        CaptureConfig   `json:"capture"`
	Motion         MotionConfig    `json:"motion"`
	Intrusion      IntrusionConfig `json:"intrusion"`
	Slides         SlidesConfig    `json:"slides"`
	AirDraw        AirDrawConfig   `json:"airdraw"`
	Pinch          PinchConfig     `json:"pinch"`
}

// DefaultDataDir returns ~/.rtspwatch.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".rtspwatch"), nil
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Mode:           ModeIntrusion,
		Addr:           "127.0.0.1:8080",
		DataDir:        dataDir,
		FlipHorizontal: true,
		RTSP: RTSPConfig{
			User: "admin",
			Host: "192.168.0.27",
			Port: 554,
			Path: "Streaming/Channels/101",
		},
		Capture: CaptureConfig{
			Fallback:     "0",
			BackoffMs:    500,
			StaleAfterMs: 2500,
		},
		Motion: MotionConfig{
			Threshold: 1.0,
			QuietMs:   2000,
			IdleFPS:   5,
			ActiveFPS: 15,
		},
		Intrusion: IntrusionConfig{
			Model:              "yolov8n.pt",
			MinConfidence:      0.35,
			ImageSize:          512,
			Tracking:           true,
			SkipEveryN:         2,
			SnapshotCooldownMs: 5000,
			FaceCascade:        "haarcascade_frontalface_default.xml",
		},
		Slides: SlidesConfig{
			HoldMs:        600,
			CooldownMs:    1000,
			SwipeWindowMs: 350,
			SwipeMinDx:    0.18,
			SwipeMaxDy:    0.10,
		},
		AirDraw: AirDrawConfig{
			ToggleHoldMs:     600,
			ToggleCooldownMs: 1000,
			DwellMs:          350,
			DwellCooldownMs:  600,
			Smoothing:        0.35,
			BrushThickness:   6,
			EraserThickness:  40,
		},
		Pinch: PinchConfig{
			On:        0.045,
			Off:       0.070,
			Smoothing: 0.25,
			Step:      0.05,
		},
	}
}

// Load returns the defaults overlaid with the JSON file at path, if it
// exists, and then with the environment.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays RTSP_USER, RTSP_PASS, RTSP_IP, RTSP_PORT, RTSP_PATH and
// RTSP_URL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RTSP_USER"); ok {
		c.RTSP.User = v
	}
	if v, ok := lookup("RTSP_PASS"); ok {
		c.RTSP.Pass = v
	}
	if v, ok := lookup("RTSP_IP"); ok {
		c.RTSP.Host = v
	}
	if v, ok := lookup("RTSP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RTSP_PORT %q: %v", ErrInvalid, v, err)
		}
		c.RTSP.Port = port
	}
	if v, ok := lookup("RTSP_PATH"); ok {
		c.RTSP.Path = v
	}
	if v, ok := lookup("RTSP_URL"); ok {
		c.RTSP.URL = v
	}
	return nil
}

// Save writes the configuration as indented JSON. The password is omitted
// so it can stay in the environment.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	out := *c
	out.RTSP.Pass = ""
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks thresholds and ranges.
func (c *Config) Validate() error {
	if !validMode(c.Mode) {
		return fmt.Errorf("%w: mode must be one of %v, got %q", ErrInvalid, Modes, c.Mode)
	}
	if c.RTSP.Descriptor() == "" && c.Capture.Fallback == "" {
		return fmt.Errorf("%w: no stream URL and no fallback camera", ErrInvalid)
	}
	if c.RTSP.URL == "" && (c.RTSP.Port < 1 || c.RTSP.Port > 65535) {
		return fmt.Errorf("%w: rtsp port must be between 1 and 65535, got %d", ErrInvalid, c.RTSP.Port)
	}
	if c.Capture.BackoffMs < 500 {
		return fmt.Errorf("%w: backoff_ms must be at least 500, got %d", ErrInvalid, c.Capture.BackoffMs)
	}
	if c.Motion.IdleFPS < 1 || c.Motion.ActiveFPS < c.Motion.IdleFPS {
		return fmt.Errorf("%w: need 1 <= idle_fps (%d) <= active_fps (%d)", ErrInvalid, c.Motion.IdleFPS, c.Motion.ActiveFPS)
	}
	if !unit(c.Intrusion.MinConfidence) {
		return fmt.Errorf("%w: intrusion min_confidence must be in [0,1], got %v", ErrInvalid, c.Intrusion.MinConfidence)
	}
	if c.Intrusion.ImageSize <= 0 {
		return fmt.Errorf("%w: intrusion image_size must be positive, got %d", ErrInvalid, c.Intrusion.ImageSize)
	}
	if c.Slides.SwipeMinDx <= 0 || c.Slides.SwipeMaxDy <= 0 {
		return fmt.Errorf("%w: swipe thresholds must be positive", ErrInvalid)
	}
	if c.Pinch.On >= c.Pinch.Off {
		return fmt.Errorf("%w: pinch on (%v) must be less than off (%v)", ErrInvalid, c.Pinch.On, c.Pinch.Off)
	}
	if !unit(c.Pinch.Smoothing) || !unit(c.AirDraw.Smoothing) {
		return fmt.Errorf("%w: smoothing must be in [0,1]", ErrInvalid)
	}
	if c.Pinch.Step < 0 || c.Pinch.Step > 1 {
		return fmt.Errorf("%w: pinch step must be in [0,1], got %v", ErrInvalid, c.Pinch.Step)
	}
	return nil
}

// Resolve returns name joined to DataDir unless it is already absolute.
func (c *Config) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// Data file locations.
func (c *Config) ConfigPath() string   { return c.Resolve("config.json") }
func (c *Config) DBPath() string       { return c.Resolve("rtspwatch.db") }
func (c *Config) ZonePath() string     { return c.Resolve("zone.json") }
func (c *Config) EventLogPath() string { return c.Resolve("intrusions_log.csv") }
func (c *Config) SnapshotsDir() string { return c.Resolve("snapshots") }
func (c *Config) CapturesDir() string  { return c.Resolve("captures") }

// PluginPath returns the plugin directory, defaulting to DataDir/plugins.
func (c *Config) PluginPath() string {
	if c.PluginDir != "" {
		return c.Resolve(c.PluginDir)
	}
	return c.Resolve("plugins")
}

// Ms converts a millisecond setting to a Duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func validMode(m string) bool {
	for _, mode := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
