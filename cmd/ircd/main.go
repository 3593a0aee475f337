// Command ircd runs the relay core: parse flags, load configuration, bind
// listeners, and hand off to the event loop until a signal or RESTART/DIE
// tells it to stop.
package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/relaycore/ircd/internal/config"
	"github.com/relaycore/ircd/internal/dnsresolve"
	"github.com/relaycore/ircd/internal/metrics"
	"github.com/relaycore/ircd/internal/module/sqllog"
	"github.com/relaycore/ircd/internal/server"
	"github.com/relaycore/ircd/internal/tlsboundary"
	"github.com/relaycore/ircd/pkg/logger"
)

var (
	configPath  string
	foreground  bool
	checkConfig bool
)

func main() {
	root := &cobra.Command{
		Use:   "ircd",
		Short: "A single-process IRC server",
		RunE:  run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "/etc/ircd/ircd.toml", "path to the TOML config file")
	root.Flags().BoolVar(&foreground, "foreground", false, "stay attached to the controlling terminal")
	root.Flags().BoolVar(&checkConfig, "check-config", false, "parse the config file and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Parse(configPath)
	if err != nil {
		return fmt.Errorf("ircd: %w", err)
	}
	if checkConfig {
		fmt.Println("config OK:", configPath)
		return nil
	}

	log := logger.New(stdoutSink{}, logger.INFO)
	log.Color = foreground

	store := config.NewStore(cfg)
	metricsReg := prometheus.NewRegistry()

	ctx, err := server.NewContext(cfg.Server.Name, "relaycore-ircd-0.1", store, log, metrics.New(metricsReg))
	if err != nil {
		return fmt.Errorf("ircd: %w", err)
	}

	if cfg.DNS.Enabled {
		resolver, err := dnsresolve.New(cfg.DNS.Resolver, time.Duration(cfg.DNS.TimeoutSec)*time.Second)
		if err != nil {
			log.Warn("reverse DNS unavailable: %v", err)
		} else {
			ctx.EnableDNS(resolver)
		}
	}

	for _, bind := range cfg.Binds {
		spec := server.ListenerSpec{Address: fmt.Sprintf("%s:%d", bind.Address, bind.Port)}
		if bind.TLS {
			tlsCfg, err := loadTLS(bind.Cert, bind.Key)
			if err != nil {
				return fmt.Errorf("ircd: listener %s: %w", spec.Address, err)
			}
			spec.Upgrader = tlsboundary.TLS{Config: tlsCfg}
		}
		if _, err := ctx.Listen(spec); err != nil {
			return fmt.Errorf("ircd: bind %s: %w", spec.Address, err)
		}
		log.Info("listening on %s (tls=%v)", spec.Address, bind.TLS)
	}

	if logger := findSQLLogModule(cfg); logger != nil {
		defer logger.Close()
		logger.Attach(ctx.Modules)
	}

	watcher, err := config.NewWatcher(store, log)
	if err != nil {
		log.Warn("config watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	stop := make(chan struct{})
	rehash := make(chan struct{}, 1)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGHUP:
				select {
				case rehash <- struct{}{}:
				default:
				}
			default:
				close(stop)
				return
			}
		}
	}()
	if watcher != nil {
		go func() {
			for range watcher.Wakeup {
				select {
				case rehash <- struct{}{}:
				default:
				}
			}
		}()
	}

	if err := ctx.Run(stop, rehash); err != nil {
		return fmt.Errorf("ircd: %w", err)
	}

	if ctx.RestartRequested() {
		return execSelf()
	}
	return nil
}

// execSelf re-execs the running binary in place for RESTART, leaving
// stdio attached so a supervisor or terminal retains output continuity
// across the restart (Design Notes resolve "does RESTART close stdio" as
// no -- before this runs, Context.shutdown has closed the client
// connections and the reactor; it does not close the listener sockets).
func execSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}

// loadTLS builds the crypto/tls.Config a Bind with tls=true upgrades
// through, from its configured certificate/key pair.
func loadTLS(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load cert/key: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

func findSQLLogModule(cfg *config.Config) *sqllog.Logger {
	for _, m := range cfg.Modules {
		if m.Name != "sqllog" {
			continue
		}
		path := m.Options["path"]
		if path == "" {
			path = "ircd-log.sqlite"
		}
		l, err := sqllog.Open(path)
		if err != nil {
			return nil
		}
		return l
	}
	return nil
}

type stdoutSink struct{}

func (stdoutSink) Println(v ...interface{}) { fmt.Println(v...) }
