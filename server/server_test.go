package server_test

import (
	"net"
	"testing"
	"time"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/server"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

// dialClient stands in for the client driver (package client): a bare session
// wrapped around a dialed TCP socket, exercising the server from outside
// exactly as a real client would.
func dialClient(t *testing.T, addr string, pl *pipeline.Pipeline, cfg session.Config, cb session.Callbacks) *session.Session {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	s := session.New(conn, pl, pipeline.NopCompressor{}, pipeline.NopEncrypter{}, cfg, cb)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

// TestBinaryEcho exercises end-to-end scenario 1: a binary_line client
// sends a payload, the server callback observes the right bytes.
func TestBinaryEcho(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	received := make(chan pipeline.BinaryMsg, 1)
	srv := server.New(server.Config{
		SourceID:         "srv",
		ConnectionKey:    "K",
		HandshakeTimeout: 2 * time.Second,
	}, server.Callbacks{
		OnBinary: func(_ *session.Session, m pipeline.BinaryMsg) { received <- m },
	}, pipeline.NopCompressor{}, pipeline.NopEncrypter{})
	defer srv.Stop()

	go srv.Serve(ln)

	clientPool := pool.New(pool.Config{High: 1, Normal: 1, Low: 1})
	defer clientPool.Stop()
	pl := pipeline.New(clientPool)

	connected := make(chan bool, 1)
	cli := dialClient(t, ln.Addr().String(), pl, session.Config{
		SourceID:      "c1",
		ConnectionKey: "K",
		SessionType:   cmn.SessionBinaryLine,
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected <- ok },
	})

	select {
	case ok := <-connected:
		if !ok {
			t.Fatal("client handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never completed")
	}

	if err := cli.SendBinary(pipeline.BinaryMsg{SourceID: "c1", TargetID: "s", Data: []byte{0x48, 0x69}}); err != nil {
		t.Fatalf("SendBinary: %v", err)
	}

	select {
	case m := <-received:
		if m.SourceID != "c1" || string(m.Data) != "Hi" {
			t.Fatalf("unexpected binary message: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the binary message")
	}
}

// TestBroadcastFanout exercises end-to-end scenario 5: two clients connect,
// the server broadcasts, and both observe the message exactly once.
func TestBroadcastFanout(t *testing.T) {
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

	clientPool := pool.New(pool.Config{High: 2, Normal: 2, Low: 1})
	defer clientPool.Stop()
	pl := pipeline.New(clientPool)

	connected1 := make(chan bool, 1)
	received1 := make(chan *value.Container, 2)
	dialClient(t, ln.Addr().String(), pl, session.Config{
		SourceID: "c1", ConnectionKey: "K", SessionType: cmn.SessionMessageLine,
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected1 <- ok },
		OnMessage: func(c *value.Container) { received1 <- c },
	})

	connected2 := make(chan bool, 1)
	received2 := make(chan *value.Container, 2)
	dialClient(t, ln.Addr().String(), pl, session.Config{
		SourceID: "c2", ConnectionKey: "K", SessionType: cmn.SessionMessageLine,
	}, session.Callbacks{
		OnConnect: func(ok bool) { connected2 <- ok },
		OnMessage: func(c *value.Container) { received2 <- c },
	})

	for _, ch := range []chan bool{connected1, connected2} {
		select {
		case ok := <-ch:
			if !ok {
				t.Fatal("a client's handshake was rejected")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("a client's handshake never completed")
		}
	}

	// give the server a moment to index both sessions' negotiated identity
	// before broadcasting.
	time.Sleep(50 * time.Millisecond)

	c := value.NewContainer("srv", "", "", "", "chat", nil)
	c.Add(value.NewString("body", "hello all"))
	srv.Send(c)

	for i, ch := range []chan *value.Container{received1, received2} {
		select {
		case got := <-ch:
			if got.MessageType != "chat" || len(got.Values()) != 1 || got.Values()[0].Str() != "hello all" {
				t.Fatalf("client %d got unexpected message: %+v", i+1, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %d never received the broadcast", i+1)
		}
	}
}
