package session_test

import (
	"net"
	"testing"
	"time"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p := pool.New(pool.Config{High: 2, Normal: 2, Low: 1})
	t.Cleanup(p.Stop)
	return pipeline.New(p)
}

// TestHandshakeThenMessageDelivered exercises spec §8 law 3 in the
// affirmative: once confirm_connection succeeds, a subsequent packet does
// reach the user callback.
func TestHandshakeThenMessageDelivered(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	pl := newPipeline(t)

	serverConnected := make(chan bool, 1)
	gotMsg := make(chan *value.Container, 1)
	srv := session.New(serverConn, pl, pipeline.NopCompressor{}, pipeline.NopEncrypter{}, session.Config{
		IsServer:         true,
		SourceID:         "srv",
		ConnectionKey:    "K",
		SessionType:      cmn.SessionMessageLine,
		HandshakeTimeout: 5 * time.Second,
	}, session.Callbacks{
		OnConnect: func(ok bool) { serverConnected <- ok },
		OnMessage: func(c *value.Container) { gotMsg <- c },
	})

	clientConnected := make(chan bool, 1)
	cli := session.New(clientConn, pl, pipeline.NopCompressor{}, pipeline.NopEncrypter{}, session.Config{
		IsServer:      false,
		SourceID:      "cli",
		ConnectionKey: "K",
		SessionType:   cmn.SessionMessageLine,
	}, session.Callbacks{
		OnConnect: func(ok bool) { clientConnected <- ok },
	})

	srv.Start()
	cli.Start()
	defer srv.Stop()
	defer cli.Stop()

	select {
	case ok := <-serverConnected:
		if !ok {
			t.Fatal("server side handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake never completed")
	}
	select {
	case ok := <-clientConnected:
		if !ok {
			t.Fatal("client side handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake never completed")
	}

	if srv.State() != session.StateConfirmed || cli.State() != session.StateConfirmed {
		t.Fatalf("expected both confirmed, got server=%v client=%v", srv.State(), cli.State())
	}

	c := value.NewContainer("cli", "", "srv", "", "chat", nil)
	c.Add(value.NewString("body", "hello"))
	if err := cli.SendPacket(c); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	select {
	case got := <-gotMsg:
		if got.MessageType != "chat" || len(got.Values()) != 1 || got.Values()[0].Str() != "hello" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never delivered the post-confirm packet")
	}
}

// TestEncryptModeHandshakeReachesConfirmed guards against handshake frames
// being sent through the real cipher before a key is negotiated: with
// encrypt_mode on both sides, the handshake must still reach confirmed and
// a post-confirm packet must still round-trip under the negotiated key.
func TestEncryptModeHandshakeReachesConfirmed(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	pl := newPipeline(t)

	serverConnected := make(chan bool, 1)
	gotMsg := make(chan *value.Container, 1)
	srv := session.New(serverConn, pl, pipeline.NopCompressor{}, pipeline.ChaChaEncrypter{}, session.Config{
		IsServer:         true,
		SourceID:         "srv",
		ConnectionKey:    "K",
		SessionType:      cmn.SessionMessageLine,
		EncryptMode:      true,
		HandshakeTimeout: 5 * time.Second,
	}, session.Callbacks{
		OnConnect: func(ok bool) { serverConnected <- ok },
		OnMessage: func(c *value.Container) { gotMsg <- c },
	})

	clientConnected := make(chan bool, 1)
	cli := session.New(clientConn, pl, pipeline.NopCompressor{}, pipeline.ChaChaEncrypter{}, session.Config{
		IsServer:      false,
		SourceID:      "cli",
		ConnectionKey: "K",
		SessionType:   cmn.SessionMessageLine,
		EncryptMode:   true,
	}, session.Callbacks{
		OnConnect: func(ok bool) { clientConnected <- ok },
	})

	srv.Start()
	cli.Start()
	defer srv.Stop()
	defer cli.Stop()

	select {
	case ok := <-serverConnected:
		if !ok {
			t.Fatal("server side handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake never completed (handshake frames likely blocked on the real cipher)")
	}
	select {
	case ok := <-clientConnected:
		if !ok {
			t.Fatal("client side handshake rejected")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake never completed (confirm_connection likely undecryptable)")
	}

	c := value.NewContainer("cli", "", "srv", "", "chat", nil)
	c.Add(value.NewString("body", "sealed"))
	if err := cli.SendPacket(c); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	select {
	case got := <-gotMsg:
		if got.MessageType != "chat" || len(got.Values()) != 1 || got.Values()[0].Str() != "sealed" {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("post-confirm packet did not round-trip under the negotiated key")
	}
}

// TestWrongKeyRejected exercises end-to-end scenario 2: a bad connection
// key gets confirm=false and the client observes connected=false.
func TestWrongKeyRejected(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	pl := newPipeline(t)

	srv := session.New(serverConn, pl, pipeline.NopCompressor{}, pipeline.NopEncrypter{}, session.Config{
		IsServer:         true,
		SourceID:         "srv",
		ConnectionKey:    "RIGHT",
		SessionType:      cmn.SessionMessageLine,
		HandshakeTimeout: 5 * time.Second,
	}, session.Callbacks{})

	clientConnected := make(chan bool, 1)
	cli := session.New(clientConn, pl, pipeline.NopCompressor{}, pipeline.NopEncrypter{}, session.Config{
		IsServer:      false,
		SourceID:      "cli",
		ConnectionKey: "WRONG",
		SessionType:   cmn.SessionMessageLine,
	}, session.Callbacks{
		OnConnect: func(ok bool) { clientConnected <- ok },
	})

	srv.Start()
	cli.Start()
	defer srv.Stop()
	defer cli.Stop()

	select {
	case ok := <-clientConnected:
		if ok {
			t.Fatal("expected rejection, got connected=true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never observed a connect notification")
	}
}

// TestWatchdogExpiresOnce exercises spec §8 law 7: a session that never
// completes its handshake expires exactly once.
func TestWatchdogExpiresOnce(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	pl := newPipeline(t)

	srv := session.New(serverConn, pl, pipeline.NopCompressor{}, pipeline.NopEncrypter{}, session.Config{
		IsServer:         true,
		SourceID:         "srv",
		ConnectionKey:    "K",
		SessionType:      cmn.SessionMessageLine,
		HandshakeTimeout: 50 * time.Millisecond,
	}, session.Callbacks{})

	srv.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.State() == session.StateExpired {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if srv.State() != session.StateExpired {
		t.Fatalf("expected expired, got %v", srv.State())
	}

	// State must not flip again after a further wait.
	time.Sleep(150 * time.Millisecond)
	if srv.State() != session.StateExpired {
		t.Fatalf("state changed after expiry: %v", srv.State())
	}
	srv.Stop()
}
