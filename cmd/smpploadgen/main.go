// Command smpploadgen drives N concurrent SMPP v3.4 sessions against a
// target SMSC, issuing submit_sm at a configured rate and surfacing live
// throughput, latency and delivery-receipt statistics until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/smpp-tools/smpploadgen/internal/config"
	"github.com/smpp-tools/smpploadgen/internal/dashboard"
	"github.com/smpp-tools/smpploadgen/internal/diag"
	"github.com/smpp-tools/smpploadgen/internal/session"
	"github.com/smpp-tools/smpploadgen/internal/smppcodec"
	"github.com/smpp-tools/smpploadgen/internal/smppwire"
	"github.com/smpp-tools/smpploadgen/internal/supervisor"
)

var opts = struct {
	ConfigPath string `short:"c" long:"config" default:"config.yaml" description:"Path to the YAML configuration file"`
	DiagAddr   string `long:"diag-addr" description:"Optional host:port to serve /debug/requests and /debug/pprof on"`
	LogLevel   string `long:"log-level" default:"info" description:"debug, info, warn or error"`
}{}

func main() {
	var parser = flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	if lvl, err := log.ParseLevel(opts.LogLevel); err != nil {
		log.WithError(err).Warn("invalid log level, defaulting to info")
	} else {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.Load.Binds == 0 {
		log.Warn("configured bind count is 0; no traffic will be generated")
	}

	var ctx, cancel = context.WithCancel(context.Background())
	go diag.Server(ctx, opts.DiagAddr)

	var sup = supervisor.New(smppwire.Connect, buildSessionConfigs(cfg))
	var supDone = make(chan struct{})
	go func() {
		sup.Run(ctx)
		cancel()
		close(supDone)
	}()

	go runDashboard(ctx, cfg, sup)

	var sigCh = make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("received interrupt, stopping")
		cancel()
	case <-ctx.Done():
	}

	<-supDone
	log.Info("load test stopped")
}

func buildSessionConfigs(cfg config.Config) []session.Config {
	var kind = session.BindTransmitter
	if cfg.SMPP.BindType == config.BindTrx {
		kind = session.BindTransceiver
	}

	var template = smppcodec.SubmitTemplate{
		ServiceType:  cfg.Message.ServiceType,
		SourceAddr:   cfg.Message.SourceAddr,
		SourceTON:    cfg.Message.SourceTON,
		SourceNPI:    cfg.Message.SourceNPI,
		DestAddr:     cfg.Message.DestinationAddr,
		DestTON:      cfg.Message.DestinationTON,
		DestNPI:      cfg.Message.DestinationNPI,
		DataCoding:   cfg.Message.DataCoding,
		ShortMessage: cfg.Message.Body,
	}
	if cfg.Message.RequestDLR {
		template.RegisteredDelivery = 1
	}

	var bindReq = smppcodec.BindRequest{
		SystemID:   cfg.SMPP.SystemID,
		Password:   cfg.SMPP.Password,
		SystemType: cfg.SMPP.SystemType,
		AddrTON:    cfg.Message.SourceTON,
		AddrNPI:    cfg.Message.SourceNPI,
	}

	var connect = smppcodec.ConnectConfig{
		URI:                 cfg.SMPP.ConnectionURI(),
		EnquireLinkInterval: 5 * time.Second,
		ResponseTimeout:     5 * time.Second,
	}

	var budget *int64
	if cfg.Load.MessagesCount > 0 {
		var v = cfg.Load.MessagesCount
		budget = &v
	}

	var configs = make([]session.Config, cfg.Load.Binds)
	for i := range configs {
		configs[i] = session.Config{
			BindIndex:         i,
			Connect:           connect,
			Bind:              bindReq,
			Kind:              kind,
			Template:          template,
			MaxTPS:            cfg.Load.MaxTPSPerBind,
			MaxInflight:       cfg.Load.InflightPerBind,
			MessagesRemaining: budget,
		}
	}
	return configs
}

func runDashboard(ctx context.Context, cfg config.Config, sup *supervisor.Supervisor) {
	var d = dashboard.New(os.Stdout, dashboard.Target{
		Host:            cfg.SMPP.Host,
		Port:            cfg.SMPP.Port,
		SystemID:        cfg.SMPP.SystemID,
		SystemType:      cfg.SMPP.SystemType,
		SourceAddr:      cfg.Message.SourceAddr,
		SourceTON:       cfg.Message.SourceTON,
		SourceNPI:       cfg.Message.SourceNPI,
		DestinationAddr: cfg.Message.DestinationAddr,
		DestinationTON:  cfg.Message.DestinationTON,
		DestinationNPI:  cfg.Message.DestinationNPI,
	})

	var ticker = time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.Render(sup.Registry, sup.Metrics)
			return
		case <-ticker.C:
			d.Render(sup.Registry, sup.Metrics)
		}
	}
}
