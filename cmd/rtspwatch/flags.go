package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ayusman/rtspwatch/internal/config"
)

// options are the command-line flags. Flags that were set explicitly win
// over the config file and the environment.
type options struct {
	configPath    string
	dataDir       string
	mode          string
	addr          string
	rtspURL       string
	fallback      string
	flip          bool
	noTray        bool
	mockDetectors bool
	saveConfig    bool
}

func parseFlags(args []string) (*options, *flag.FlagSet, error) {
	dataDir, err := config.DefaultDataDir()
	if err != nil {
		dataDir = ".rtspwatch"
	}

	opts := &options{}
	fs := flag.NewFlagSet("rtspwatch", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "config file (default <data-dir>/config.json)")
	fs.StringVar(&opts.dataDir, "data-dir", dataDir, "directory for the database, logs, snapshots and zone file")
	fs.StringVar(&opts.mode, "mode", "", "application mode: "+strings.Join(config.Modes, ", "))
	fs.StringVar(&opts.addr, "addr", "", "web UI listen address")
	fs.StringVar(&opts.rtspURL, "rtsp-url", "", "full RTSP URL, overrides the rtsp host/port/path settings")
	fs.StringVar(&opts.fallback, "fallback", "", `local camera used when the stream is unavailable ("" disables)`)
	fs.BoolVar(&opts.flip, "flip", true, "mirror frames in hand modes")
	fs.BoolVar(&opts.noTray, "no-tray", false, "run without the system tray icon")
	fs.BoolVar(&opts.mockDetectors, "mock-detectors", false, "use detectors that never find anything (for UI work without Python)")
	fs.BoolVar(&opts.saveConfig, "save-config", false, "write the effective config (without password) and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: rtspwatch [flags]")
		fs.PrintDefaults()
	}
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs, nil
}

func (o *options) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return (&config.Config{DataDir: o.dataDir}).ConfigPath()
}

// apply overlays the flags that were given on the command line.
func (o *options) apply(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data-dir":
			cfg.DataDir = o.dataDir
		case "mode":
			cfg.Mode = o.mode
		case "addr":
			cfg.Addr = o.addr
		case "rtsp-url":
			cfg.RTSP.URL = o.rtspURL
		case "fallback":
			cfg.Capture.Fallback = o.fallback
		case "flip":
			cfg.FlipHorizontal = o.flip
		}
	})
}
