// tarpitd is an SSH tarpit: it accepts connections on internet-facing ports
// and holds them open indefinitely, trickling banner noise at a slow cadence
// so scanners waste their time here instead of somewhere that matters.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/dobrevit/tarpitd/pkg/api"
	"github.com/dobrevit/tarpitd/pkg/config"
	"github.com/dobrevit/tarpitd/pkg/geo"
	"github.com/dobrevit/tarpitd/pkg/privdrop"
	"github.com/dobrevit/tarpitd/pkg/stats"
	"github.com/dobrevit/tarpitd/pkg/tarpit"
)

// sysexits-style codes for fatal startup failures.
const (
	exitUsage = 64
	exitOSErr = 71
)

// listenList collects repeatable --listen flags.
type listenList []string

func (l *listenList) String() string { return fmt.Sprint([]string(*l)) }

func (l *listenList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string { return strconv.Itoa(int(*v)) }

func (v *verbosity) IsBoolFlag() bool { return true }

func (v *verbosity) Set(string) error {
	*v++
	return nil
}

func main() {
	var (
		configFile = flag.String("config", "", "TOML configuration file")
		listens    listenList
		verbose    verbosity
		maxClients = flag.Int64("max-clients", tarpit.DefaultMaxClients, "Best-effort connection limit")
		delay      = flag.Int("delay", 10, "Seconds between banner writes")
		timeout    = flag.Int("timeout", 30, "Socket write timeout in seconds")
		banner     = flag.String("banner", "verse", "Banner source: verse or random")
		drain      = flag.Bool("drain", false, "Drain sessions on shutdown instead of cancelling them")
		chrootDir  = flag.String("chroot", "", "Chroot to this directory after binding")
		userName   = flag.String("user", "", "Run as this user and their primary group")
		groupName  = flag.String("group", "", "Run as this group")
		statusAddr = flag.String("status-addr", "", "Optional HTTP status/metrics listen address")
		geoipDB    = flag.String("geoip-db", "", "Optional GeoIP2 country database for peer enrichment")
		threads    = flag.Int("threads", 0, "Cap GOMAXPROCS (0 leaves the runtime default)")
		logFormat  = flag.String("log-format", "text", "Log format: text or json")
		noStamps   = flag.Bool("disable-timestamps", false, "Disable timestamps in logs")
	)
	flag.Var(&listens, "listen", "Listen address to bind (repeatable)")
	flag.Var(&verbose, "v", "Increase log verbosity (repeatable)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	// Explicitly passed flags win over file values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Server.Listen = listens
		case "max-clients":
			cfg.Tarpit.MaxClients = *maxClients
		case "delay":
			cfg.Tarpit.DelaySeconds = *delay
		case "timeout":
			cfg.Tarpit.TimeoutSeconds = *timeout
		case "banner":
			cfg.Tarpit.Banner = *banner
		case "drain":
			cfg.Tarpit.Drain = *drain
		case "chroot":
			cfg.PrivDrop.Chroot = *chrootDir
		case "user":
			cfg.PrivDrop.User = *userName
		case "group":
			cfg.PrivDrop.Group = *groupName
		case "status-addr":
			cfg.Status.Addr = *statusAddr
		case "geoip-db":
			cfg.Status.GeoIPDatabase = *geoipDB
		case "threads":
			cfg.Server.Threads = *threads
		case "log-format":
			cfg.Logging.Format = *logFormat
		case "disable-timestamps":
			cfg.Logging.DisableTimestamps = *noStamps
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	logger := newLogger(cfg.Logging, int(verbose))

	if cfg.Server.Threads > 0 {
		n := cfg.Server.Threads
		if n > 512 {
			n = 512
		}
		runtime.GOMAXPROCS(n)
		logger.WithField("threads", n).Info("scheduler")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithField("error", err.Error()).Error("fatal")
		os.Exit(exitOSErr)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig, verbose int) *log.Logger {
	logger := log.New()
	switch {
	case verbose <= 0:
		logger.SetLevel(log.WarnLevel)
	case verbose == 1:
		logger.SetLevel(log.InfoLevel)
	case verbose == 2:
		logger.SetLevel(log.DebugLevel)
	default:
		logger.SetLevel(log.TraceLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{
			DisableTimestamp: cfg.DisableTimestamps,
		})
	} else {
		logger.SetFormatter(&log.TextFormatter{
			DisableTimestamp: cfg.DisableTimestamps,
			FullTimestamp:    true,
		})
	}
	return logger
}

// run performs the bootstrap sequence. Order is a hard invariant: bind every
// socket, drop privileges, and only then start accepting. No
// attacker-reachable code path may run before the drop completes.
func run(cfg *config.Config, logger *log.Logger) error {
	registry := stats.NewRegistry()

	var peerInfo tarpit.PeerInfo
	if cfg.Status.GeoIPDatabase != "" {
		resolver, err := geo.Open(cfg.Status.GeoIPDatabase)
		if err != nil {
			return err
		}
		defer resolver.Close()
		peerInfo = resolver
	}

	srv := tarpit.NewServer(tarpit.Config{
		Delay:      seconds(cfg.Tarpit.DelaySeconds),
		Timeout:    seconds(cfg.Tarpit.TimeoutSeconds),
		MaxClients: cfg.Tarpit.MaxClients,
		Banner:     bannerFor(cfg.Tarpit.Banner),
		Drain:      cfg.Tarpit.Drain,
		PeerInfo:   peerInfo,
	}, registry, logger)

	if err := srv.Bind(cfg.Server.Listen); err != nil {
		return err
	}

	var status *api.StatusServer
	if cfg.Status.Addr != "" {
		promReg := prometheus.NewRegistry()
		if err := stats.RegisterMetrics(promReg, registry); err != nil {
			return err
		}
		status = api.NewStatusServer(registry, promReg, logger)
		if err := status.Bind(cfg.Status.Addr); err != nil {
			return err
		}
	}

	drop := privdrop.Config{
		User:   cfg.PrivDrop.User,
		Group:  cfg.PrivDrop.Group,
		Chroot: cfg.PrivDrop.Chroot,
	}
	if err := drop.Apply(logger); err != nil {
		return err
	}

	srv.Start()
	if status != nil {
		status.Serve()
		defer status.Close()
	}

	waitForSignals(registry, logger)

	srv.Stop()

	snap := registry.Snapshot()
	logger.WithFields(log.Fields{
		"uptime":        snap.Uptime.Round(100 * time.Millisecond).String(),
		"clients":       snap.CurrentClients,
		"total_clients": snap.TotalClients,
		"total_bytes":   snap.TotalBytes,
	}).Info("shutdown")
	return nil
}

// waitForSignals blocks until a termination signal arrives. SIGUSR1 emits a
// status snapshot without disturbing anything.
func waitForSignals(registry *stats.Registry, logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			snap := registry.Snapshot()
			logger.WithFields(log.Fields{
				"uptime":        snap.Uptime.Round(100 * time.Millisecond).String(),
				"clients":       snap.CurrentClients,
				"total_clients": snap.TotalClients,
				"total_bytes":   snap.TotalBytes,
			}).Info("status")
			continue
		}
		logger.WithField("signal", sig.String()).Info("terminating")
		return
	}
}

func bannerFor(name string) tarpit.Banner {
	if name == "random" {
		return tarpit.RandomBanner{}
	}
	return tarpit.VerseBanner{}
}

func seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
