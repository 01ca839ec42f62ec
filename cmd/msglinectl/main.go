// Command msglinectl is a demo client driver: it dials a msglined server,
// completes the handshake, and either sends one message_line payload or
// dumps every inbound message as newline-delimited JSON until killed.
// Grounded on the teacher's cmd/cli tool split (one binary, subcommands
// picked off os.Args[1]) scaled down to this module's single client.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/meshline/msgline/client"
	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/cmn/nlog"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: msglinectl <host> <port> <source_id> <connection_key> send <body>")
	fmt.Fprintln(os.Stderr, "       msglinectl <host> <port> <source_id> <connection_key> dump")
}

func main() {
	if len(os.Args) < 6 {
		usage()
		os.Exit(1)
	}
	host := os.Args[1]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil {
		nlog.Errorf("bad port %q: %v", os.Args[2], err)
		os.Exit(1)
	}
	sourceID := os.Args[3]
	connKey := os.Args[4]
	sub := os.Args[5]

	connected := make(chan bool, 1)
	cli := client.New(client.Config{
		SourceID:          sourceID,
		ConnectionKey:     connKey,
		SessionType:       cmn.SessionMessageLine,
		ReceiveBufferSize: 4096,
		Workers:           pool.Config{High: 4, Normal: 4, Low: 2},
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected <- ok },
		OnMessage: func(c *value.Container) { dumpContainer(c) },
		OnDisconnect: func() {
			nlog.Infof("msglinectl: disconnected")
		},
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})

	installSignalHandler(cli)

	if err := cli.Start(host, port); err != nil {
		nlog.Errorf("start: %v", err)
		os.Exit(1)
	}
	defer cli.Stop()

	select {
	case ok := <-connected:
		if !ok {
			nlog.Errorf("handshake rejected")
			os.Exit(1)
		}
	case <-time.After(5 * time.Second):
		nlog.Errorf("handshake timed out")
		os.Exit(1)
	}

	switch sub {
	case "send":
		if len(os.Args) < 7 {
			usage()
			os.Exit(1)
		}
		body := os.Args[6]
		c := value.NewContainer(sourceID, "", "", "", "chat", nil)
		c.Add(value.NewString("body", body))
		if err := cli.SendPacket(c); err != nil {
			nlog.Errorf("send: %v", err)
			os.Exit(1)
		}
	case "dump":
		select {}
	default:
		usage()
		os.Exit(1)
	}
}

func dumpContainer(c *value.Container) {
	b, err := cmn.MarshalJSON(map[string]any{
		"message_type": c.MessageType,
		"source_id":    c.SourceID,
		"target_id":    c.TargetID,
	})
	if err != nil {
		nlog.Warningf("msglinectl: marshal inbound message: %v", err)
		return
	}
	fmt.Println(string(b))
}

func installSignalHandler(cli *client.Client) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cli.Stop()
		os.Exit(0)
	}()
}
