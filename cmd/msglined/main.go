// Command msglined is the server endpoint (spec §4.6): it loads a JSON
// config, starts a registry-backed accept loop, and logs connect/disconnect
// events. Grounded on the teacher's cmd/authn/main.go: flag-selected config
// path, signal handler, nlog-based startup banner.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/cmn/nlog"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/server"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to the server's JSON config file")
}

func main() {
	installSignalHandler()
	flag.Parse()

	if configPath == "" {
		nlog.Errorf("missing -config")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := cmn.LoadConfig(configPath)
	if err != nil {
		nlog.Errorf("load config %s: %v", configPath, err)
		os.Exit(1)
	}

	possible := make([]cmn.SessionType, 0, len(cfg.PossibleSessionTypes))
	for _, t := range cfg.PossibleSessionTypes {
		possible = append(possible, cmn.SessionType(t))
	}

	srv := server.New(server.Config{
		Port:                  cfg.Port,
		SourceID:              cfg.SourceID,
		ConnectionKey:         cfg.ConnectionKey,
		EncryptMode:           cfg.EncryptMode,
		CompressMode:          cfg.CompressMode,
		SessionLimitCount:     cfg.SessionLimitCount,
		SessionLimitEnabled:   cfg.SessionLimitCount > 0,
		PossibleSessionTypes:  possible,
		IgnoreSnippingTargets: cfg.IgnoreSnippingTargets,
		HandshakeTimeout:      cfg.HandshakeTimeout,
		IdleTeardown:          cfg.IdleTeardown,
		ReceiveBufferSize:     cfg.ReceiveBufferSize,
		Workers: pool.Config{
			High:   cfg.HighPriorityWorkers,
			Normal: cfg.NormalPriorityWorkers,
			Low:    cfg.LowPriorityWorkers,
		},
	}, server.Callbacks{
		OnConnect: func(s *session.Session, ok bool) {
			nlog.Infof("session %s connect ok=%v", s.ID(), ok)
		},
		OnMessage: func(s *session.Session, c *value.Container) {
			nlog.Infof("session %s message_type=%s", s.ID(), c.MessageType)
		},
		OnDisconnect: func(s *session.Session) {
			nlog.Infof("session %s disconnected", s.ID())
		},
	}, compressorFor(cfg.CompressMode), encrypterFor(cfg.EncryptMode))

	nlog.Infof("msglined listening on port %d (source_id=%s)", cfg.Port, cfg.SourceID)
	if err := srv.ListenAndServe(); err != nil {
		nlog.Errorf("serve: %v", err)
		os.Exit(1)
	}
}

func compressorFor(on bool) pipeline.Compressor {
	if on {
		return pipeline.LZ4Compressor{}
	}
	return pipeline.NopCompressor{}
}

func encrypterFor(on bool) pipeline.Encrypter {
	if on {
		return pipeline.ChaChaEncrypter{}
	}
	return pipeline.NopEncrypter{}
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Fprintln(os.Stderr, "msglined: shutting down")
		os.Exit(0)
	}()
}
