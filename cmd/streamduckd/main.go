// Command streamduckd is the Streamduck daemon: it drives connected panels
// and serves the client protocol on a local socket.
package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/streamduck-org/streamduck/pkg/daemon"
	"github.com/streamduck-org/streamduck/pkg/monitoring"
	"github.com/streamduck-org/streamduck/pkg/observability"
)

func main() {
	var (
		socketPath  = flag.String("socket", defaultSocketPath(), "path of the client socket")
		configDir   = flag.String("config-dir", defaultConfigDir(), "directory holding device configs")
		logFile     = flag.String("log-file", "", "log file path; empty logs to stderr")
		logLevel    = flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
		metricsAddr = flag.String("metrics-addr", "", "address serving prometheus metrics; empty disables")
		sentryDSN   = flag.String("sentry-dsn", "", "sentry DSN for error reporting; empty uses console reporting")
	)
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", *logLevel, err)
	}
	log.SetLevel(level)
	if *logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		})
	}

	if *sentryDSN != "" {
		reporter, err := observability.NewSentryReporter(*sentryDSN,
			observability.WithEnvironment("production"),
		)
		if err != nil {
			log.Fatalf("sentry init failed: %v", err)
		}
		observability.SetErrorReporter(reporter)
		defer func() {
			if err := reporter.Flush(5 * time.Second); err != nil {
				log.Warnf("sentry flush: %v", err)
			}
		}()
	} else {
		observability.SetErrorReporter(observability.NewConsoleReporter(level >= log.DebugLevel))
	}

	if *metricsAddr != "" {
		monitoring.SetGlobalMetrics(monitoring.NewPrometheusMetrics(prometheus.DefaultRegisterer))
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	d, err := daemon.New(*configDir)
	if err != nil {
		log.Fatalf("daemon init failed: %v", err)
	}

	// Stale sockets from a crashed run block the bind.
	if err := os.Remove(*socketPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("removing stale socket: %v", err)
	}
	listener, err := net.Listen("unix", *socketPath)
	if err != nil {
		log.Fatalf("listening on %s: %v", *socketPath, err)
	}

	d.StartDiscovery()
	log.Infof("streamduckd listening on %s", *socketPath)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		log.Info("shutting down")
		listener.Close()
		d.Close()
		os.Remove(*socketPath)
		os.Exit(0)
	}()

	if err := d.Serve(listener); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/streamduck.sock"
	}
	return "/tmp/streamduck.sock"
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/streamduck/devices"
	}
	return "./streamduck-devices"
}
