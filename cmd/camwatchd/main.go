package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/lanikai/camwatch/internal/analytics"
	"github.com/lanikai/camwatch/internal/logging"
	"github.com/lanikai/camwatch/internal/media"
	"github.com/lanikai/camwatch/internal/monitor"
	"github.com/lanikai/camwatch/internal/prefs"
	"github.com/lanikai/camwatch/internal/viewer"

	// Frame sources register their URL schemes.
	_ "github.com/lanikai/camwatch/internal/media/file"
	_ "github.com/lanikai/camwatch/internal/media/mjpeg"
	_ "github.com/lanikai/camwatch/internal/media/rtsp"
)

const (
	shutdownTimeout = 5 * time.Second

	// Slack on top of the supervisor's own shutdown budget.
	stopMargin = 2 * time.Second
)

var log = logging.DefaultLogger.WithTag("camwatchd")

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	store, err := loadPrefs()
	if err != nil {
		log.Fatalf("prefs: %v", err)
	}

	cfg, err := monitorConfig(store)
	if err != nil {
		log.Fatalf("%v", err)
	}

	sinks := []analytics.Sink{analytics.LogSink{}}
	if id := prefs.AnalyticsID(store); id != "" {
		collector, err := analytics.NewCollector(id)
		if err != nil {
			log.Warn("analytics disabled: %v", err)
		} else {
			collector.Start()
			defer collector.Stop(shutdownTimeout)
			sinks = append(sinks, collector)
		}
	}

	hub := viewer.NewHub(flagListen)
	views := make(map[int]monitor.View, len(cfg.URLs))
	for i, url := range cfg.URLs {
		views[i] = hub.View(i)
		log.Info("camera %d (%s): %s", i, prefs.Label(store, i), media.Redact(url))
	}

	sup, err := monitor.New(cfg, views, analytics.Multi(sinks...))
	if err != nil {
		log.Fatalf("%v", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- hub.ListenAndServe()
	}()

	sup.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGINT, unix.SIGTERM)

	select {
	case s := <-sig:
		log.Info("received %v, shutting down", s)
	case err := <-serveErr:
		if err != nil {
			log.Error("viewer: %v", err)
		}
	}

	if timeout := stopTimeout(sup.Config()); !sup.StopSync(timeout) {
		log.Warn("supervisor did not stop within %v", timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hub.Shutdown(ctx); err != nil {
		log.Warn("viewer shutdown: %v", err)
	}
}

// loadPrefs layers flags over the preferences file over the environment.
func loadPrefs() (prefs.Store, error) {
	chain := prefs.Chain{flagPrefsMap()}
	if flagPrefs != "" {
		file, err := prefs.LoadFile(flagPrefs)
		if err != nil {
			return nil, err
		}
		chain = append(chain, file)
	}
	return append(chain, prefs.Env("CAMWATCH_")), nil
}

// flagPrefsMap holds only the flags given on the command line, so that
// defaults never mask the file or environment.
func flagPrefsMap() prefs.Map {
	m := prefs.Map{}
	if flag.CommandLine.Changed("camera-count") {
		m[prefs.KeyCamerasCount] = strconv.Itoa(flagCameraCount)
	}
	for i, url := range flagURLs {
		if flag.CommandLine.Changed("url" + strconv.Itoa(i+1)) {
			m[prefs.CameraURLKey(i+1)] = url
		}
	}
	if flag.CommandLine.Changed("debug-display") {
		m[prefs.KeyDebugDisplay] = strconv.FormatBool(flagDebugDisplay)
	}
	return m
}

// stopTimeout bounds StopSync by the longest the supervisor can spend shutting
// down: joining retired workers, then stopping every slot in turn.
func stopTimeout(cfg monitor.Config) time.Duration {
	return cfg.ShutdownTimeout + monitor.MaxCameras*cfg.SlotStopTimeout + stopMargin
}

func monitorConfig(store prefs.Store) (monitor.Config, error) {
	cfg := monitor.DefaultConfig()

	urls, err := prefs.Cameras(store)
	if err != nil {
		return cfg, err
	}
	cfg.URLs = urls

	pf, err := media.ParsePixelFormat(flagPixelFormat)
	if err != nil {
		return cfg, err
	}
	cfg.Options.PixelFormat = pf
	cfg.StallTimeout = flagStallTimeout
	cfg.DebugDisplay = prefs.DebugDisplay(store)

	return cfg, cfg.Validate()
}
