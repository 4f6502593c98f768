package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/rtspwatch/internal/app"
	"github.com/ayusman/rtspwatch/internal/capture"
	"github.com/ayusman/rtspwatch/internal/config"
	"github.com/ayusman/rtspwatch/internal/eventlog"
	"github.com/ayusman/rtspwatch/internal/plugin"
	"github.com/ayusman/rtspwatch/internal/server"
	"github.com/ayusman/rtspwatch/internal/store"
	"github.com/ayusman/rtspwatch/internal/tray"
	"github.com/ayusman/rtspwatch/internal/zone"
)

const shutdownTimeout = 5 * time.Second

func main() {
	opts, fs, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	if err := run(opts, fs); err != nil {
		log.Fatalf("rtspwatch: %v", err)
	}
}

func run(opts *options, fs *flag.FlagSet) error {
	cfg, err := config.Load(opts.configFile(), opts.dataDir)
	if err != nil {
		return err
	}
	opts.apply(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.saveConfig {
		if err := cfg.Save(opts.configFile()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Wrote %s\n", opts.configFile())
		return nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	if err := st.Bindings().Seed(app.DefaultSlideBindings()); err != nil {
		return fmt.Errorf("seed bindings: %w", err)
	}

	csvLog, err := eventlog.NewCSVLogger(cfg.EventLogPath(), cfg.SnapshotsDir())
	if err != nil {
		return err
	}
	logger := eventlog.Multi{csvLog, eventlog.NewStoreLogger(st)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zc := zone.NewConfig(cfg.ZonePath())
	go func() {
		if err := zc.Watch(ctx); err != nil {
			log.Printf("zone: watch stopped: %v", err)
		}
	}()

	source, err := capture.NewFrameSource(capture.Config{
		Primary:    cfg.RTSP.Descriptor(),
		Fallback:   cfg.Capture.Fallback,
		Backoff:    config.Ms(cfg.Capture.BackoffMs),
		StaleAfter: config.Ms(cfg.Capture.StaleAfterMs),
	}, nil)
	if err != nil {
		return err
	}
	if err := source.Connect(); err != nil {
		return err
	}
	source.Start()
	defer source.Stop()

	plugins := plugin.NewManager(cfg.PluginPath())
	if err := plugins.Discover(); err != nil {
		log.Printf("plugin: discovery failed: %v", err)
	}
	actuator := plugin.NewActuator(plugins, plugin.NewExecutor(plugin.DefaultTimeout))
	defer actuator.Close()

	det, err := newDetectors(cfg, opts.mockDetectors)
	if err != nil {
		return err
	}
	defer det.Close()

	handler, err := app.NewHandler(cfg, app.Deps{
		Hands:     det.hands,
		People:    det.people,
		Actuator:  actuator,
		Bindings:  st.Bindings(),
		Zone:      zc,
		Snapshots: csvLog,
	})
	if err != nil {
		return err
	}

	hub := server.NewEventHub()
	var tr *tray.Tray
	if !opts.noTray {
		tr = tray.New(cfg.Mode, false)
	}

	a, err := app.New(appConfig(cfg, source, handler, logger, publishers(hub, tr), st.Settings()))
	if err != nil {
		handler.Close()
		return err
	}
	a.Start()
	defer a.Stop()

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.DataDir),
		Store:     st,
		App:       a,
		Source:    source,
		Zone:      zc,
		Events:    hub,
		Plugins:   plugins,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Addr)
	}()
	log.Printf("rtspwatch: %s mode on %s, web UI at http://%s", cfg.Mode, capture.Redact(cfg.RTSP.Descriptor()), cfg.Addr)

	var runErr error
	wait := func() {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				runErr = fmt.Errorf("server failed: %w", err)
			}
		}
	}

	if tr == nil {
		wait()
	} else {
		// systray needs the main goroutine.
		tr.SetArmed(a.Armed())
		a.OnArmedChange(tr.SetArmed)
		tr.OnToggle(func(armed bool) {
			if err := a.SetArmed(armed); err != nil {
				log.Printf("tray: %v", err)
			}
		})
		tr.OnOpenUI(func() {
			if err := openBrowser("http://" + cfg.Addr); err != nil {
				log.Printf("tray: %v", err)
			}
		})
		tr.OnQuit(stop)
		go func() {
			wait()
			tr.Quit()
		}()
		tr.Run()
		stop()
	}

	log.Println("rtspwatch: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Printf("rtspwatch: server shutdown: %v", err)
	}
	return runErr
}

// appConfig maps the configuration onto the processing loop. Intrusion
// mode idles at a low rate until the motion gate opens; hand modes always
// run at the active rate so holds and swipes stay responsive.
func appConfig(cfg *config.Config, source app.FrameProvider, handler app.Handler, logger eventlog.Logger, pub app.Publisher, settings app.ArmedStore) app.Config {
	ac := app.Config{
		Source:       source,
		Handler:      handler,
		Logger:       logger,
		Publisher:    pub,
		Settings:     settings,
		ArmedKey:     store.SettingArmed,
		DefaultArmed: cfg.Mode == config.ModeIntrusion,
		IdleFPS:      cfg.Motion.IdleFPS,
		ActiveFPS:    cfg.Motion.ActiveFPS,
	}

	if cfg.Mode == config.ModeIntrusion {
		ac.Motion = capture.NewMotionGate(cfg.Motion.Threshold, config.Ms(cfg.Motion.QuietMs))
	} else {
		ac.IdleFPS = cfg.Motion.ActiveFPS
		ac.FlipHorizontal = cfg.FlipHorizontal
	}
	return ac
}

// findWebDir searches for the web UI directory next to the working
// directory, then under the data directory.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
