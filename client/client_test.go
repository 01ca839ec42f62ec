package client_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshline/msgline/client"
	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/server"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

func newPoolConfig() pool.Config { return pool.Config{High: 2, Normal: 2, Low: 1} }

// TestClientHandshakeAndMessage exercises the accepting branch of end-to-end
// scenario 2: a client dials, the handshake completes, and a message_line
// packet reaches the server's callback.
func TestClientHandshakeAndMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	gotMsg := make(chan *value.Container, 1)
	srv := server.New(server.Config{
		SourceID:         "srv",
		ConnectionKey:    "K",
		HandshakeTimeout: 2 * time.Second,
	}, server.Callbacks{
		OnMessage: func(_ *session.Session, c *value.Container) { gotMsg <- c },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})
	defer srv.Stop()
	go srv.Serve(ln)

	addr := ln.Addr().(*net.TCPAddr)

	connected := make(chan bool, 1)
	cli := client.New(client.Config{
		SourceID:          "c1",
		ConnectionKey:     "K",
		SessionType:       cmn.SessionMessageLine,
		ReceiveBufferSize: 4096,
		Workers:           newPoolConfig(),
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected <- ok },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})

	if err := cli.Start(addr.IP.String(), addr.Port); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer cli.Stop()

	select {
	case ok := <-connected:
		if !ok {
			t.Fatal("handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never completed")
	}

	c := value.NewContainer("c1", "", "srv", "", "chat", nil)
	c.Add(value.NewString("body", "hello"))
	if err := cli.SendPacket(c); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}

	select {
	case got := <-gotMsg:
		if got.MessageType != "chat" || got.Values()[0].Str() != "hello" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the message")
	}
}

// TestClientWrongKeyRejected exercises end-to-end scenario 2's negative
// branch: a bad connection key is rejected and the socket is torn down.
func TestClientWrongKeyRejected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := server.New(server.Config{
		SourceID:         "srv",
		ConnectionKey:    "K",
		HandshakeTimeout: 2 * time.Second,
	}, server.Callbacks{}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})
	defer srv.Stop()
	go srv.Serve(ln)

	addr := ln.Addr().(*net.TCPAddr)

	connected := make(chan bool, 1)
	cli := client.New(client.Config{
		SourceID:      "c1",
		ConnectionKey: "WRONG",
		SessionType:   cmn.SessionMessageLine,
		Workers:       newPoolConfig(),
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected <- ok },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})

	if err := cli.Start(addr.IP.String(), addr.Port); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer cli.Stop()

	select {
	case ok := <-connected:
		if ok {
			t.Fatal("expected handshake rejection with a wrong key")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never resolved")
	}
}

// TestClientFileUploadNotify exercises end-to-end scenario 6: the client
// pushes a file, the server saves it and replies with a file notify, and
// the client's OnFileNotify callback observes the final path.
func TestClientFileUploadNotify(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a")
	dstPath := filepath.Join(dir, "b")
	if err := os.WriteFile(srcPath, []byte("file contents"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	srv := server.New(server.Config{
		SourceID:         "srv",
		ConnectionKey:    "K",
		HandshakeTimeout: 2 * time.Second,
	}, server.Callbacks{}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})
	defer srv.Stop()
	go srv.Serve(ln)

	addr := ln.Addr().(*net.TCPAddr)

	connected := make(chan bool, 1)
	gotNotify := make(chan pipeline.FileNotify, 1)
	cli := client.New(client.Config{
		SourceID:      "c1",
		ConnectionKey: "K",
		SessionType:   cmn.SessionFileLine,
		Workers:       newPoolConfig(),
	}, session.Callbacks{
		OnConnect:    func(ok bool) { connected <- ok },
		OnFileNotify: func(n pipeline.FileNotify) { gotNotify <- n },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})

	if err := cli.Start(addr.IP.String(), addr.Port); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer cli.Stop()

	select {
	case ok := <-connected:
		if !ok {
			t.Fatal("handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never completed")
	}

	if err := cli.SendFile(pipeline.FileUpload{
		IndicationID: "ind1",
		SourceID:     "c1",
		TargetID:     "srv",
		SourcePath:   srcPath,
		TargetPath:   dstPath,
	}); err != nil {
		t.Fatalf("SendFile: %v", err)
	}

	select {
	case n := <-gotNotify:
		if n.FinalTargetPath != dstPath {
			t.Fatalf("expected final_target_path %q, got %q", dstPath, n.FinalTargetPath)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the file notify reply")
	}

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(got) != "file contents" {
		t.Fatalf("saved file contents = %q", got)
	}
}

// TestClientBinaryRoundTrip exercises end-to-end scenario 1 from the client
// driver's side, including the u32-length-prefixed binary frame codec.
func TestClientBinaryRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gotBin := make(chan pipeline.BinaryMsg, 1)
	srv := server.New(server.Config{
		SourceID:         "srv",
		ConnectionKey:    "K",
		HandshakeTimeout: 2 * time.Second,
	}, server.Callbacks{
		OnBinary: func(_ *session.Session, m pipeline.BinaryMsg) { gotBin <- m },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})
	defer srv.Stop()
	go srv.Serve(ln)

	addr := ln.Addr().(*net.TCPAddr)

	connected := make(chan bool, 1)
	cli := client.New(client.Config{
		SourceID:      "c1",
		ConnectionKey: "K",
		SessionType:   cmn.SessionBinaryLine,
		Workers:       newPoolConfig(),
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected <- ok },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})

	if err := cli.Start(addr.IP.String(), addr.Port); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer cli.Stop()

	select {
	case ok := <-connected:
		if !ok {
			t.Fatal("handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never completed")
	}

	if err := cli.SendBinary(pipeline.BinaryMsg{SourceID: "c1", TargetID: "srv", Data: []byte("payload")}); err != nil {
		t.Fatalf("SendBinary: %v", err)
	}

	select {
	case m := <-gotBin:
		if string(m.Data) != "payload" {
			t.Fatalf("unexpected binary payload: %q", m.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the binary message")
	}
}
