// Command netconfd runs a standalone NETCONF server (RFC 6241) backed by
// the in-memory datastore, wiring the schema accessor, filter compiler,
// edit applier and dispatcher onto the SSH/NETCONF transport in
// netconf/server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/finlaygreen/netconfd/datastore"
	"github.com/finlaygreen/netconfd/dispatch"
	ncsrv "github.com/finlaygreen/netconfd/netconf/server/netconf"
	"github.com/finlaygreen/netconfd/netconf/server/ssh"
	"github.com/finlaygreen/netconfd/netconfsrv"
	"github.com/finlaygreen/netconfd/stateproviders"
)

var log = logrus.WithField("component", "netconfd")

func main() {
	cfg := parseFlags()

	logrus.SetLevel(cfg.logLevel())

	sshcfg, err := ssh.PasswordConfig(cfg.Username, cfg.Password)
	if err != nil {
		log.WithError(err).Fatal("building ssh server config")
	}

	sch := demoSchema()
	backend := datastore.NewInMemory(cfg.DenyExec...)
	d := dispatch.New(sch, backend)

	providers := stateproviders.NewRegistry()
	providers.Register("yang-library", stateproviders.YangLibraryProvider(sch))

	registry := netconfsrv.NewSessionRegistry()
	providers.Register("netconf-state", stateproviders.NetconfMonitoringProvider(registry.Snapshot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = ncsrv.WithTrace(ctx, ncsrv.DiagnosticLoggingHooks)

	srv, err := ncsrv.NewServer(ctx, cfg.Address, cfg.Port, sshcfg, netconfsrv.Factory(d, registry, providers))
	if err != nil {
		log.WithError(err).Fatal("starting netconf server")
	}
	defer srv.Close()

	log.WithFields(logrus.Fields{
		"address": cfg.Address,
		"port":    srv.Port(),
	}).Info("netconfd listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
}

// Config carries netconfd's process-level settings. parseFlags starts from
// a copy of defaultConfig and overrides each field given on the command
// line.
type Config struct {
	Address  string
	Port     int
	Username string
	Password string
	LogLevel string
	DenyExec []string
}

var defaultConfig = Config{
	Address:  "localhost",
	Port:     830,
	Username: "admin",
	Password: "admin",
	LogLevel: "info",
}

func (c Config) logLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func parseFlags() Config {
	cfg := defaultConfig

	flag.StringVar(&cfg.Address, "address", defaultConfig.Address, "address to listen on")
	flag.IntVar(&cfg.Port, "port", defaultConfig.Port, "port to listen on")
	flag.StringVar(&cfg.Username, "username", defaultConfig.Username, "SSH username accepted by the server")
	flag.StringVar(&cfg.Password, "password", defaultConfig.Password, "SSH password accepted by the server")
	flag.StringVar(&cfg.LogLevel, "log-level", defaultConfig.LogLevel, "logrus level (debug, info, warn, error)")
	flag.Parse()

	return cfg
}
