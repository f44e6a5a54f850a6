package ptls

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"testing"
	"time"

	"github.com/ptls-project/ptls/core/crypto"
	"github.com/ptls-project/ptls/core/frame"
)

func testKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return NewKeyPair(priv)
}

// pipePair builds two Tunnels wired together over a pair of in-memory
// pipes, mirroring core/frame's TestConcurrentSendReceive.
func pipePair(t *testing.T) (client, server *Tunnel) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	clientKP := testKeyPair(t)
	serverKP := testKeyPair(t)

	var err error
	client, err = New(clientR, clientW, clientKP, crypto.HashSHA256, crypto.HashSHA256)
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}
	server, err = New(serverR, serverW, serverKP, crypto.HashSHA256, crypto.HashSHA256)
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}
	return client, server
}

// TestFullHandshakeCompletion matches spec.md §8 property 8.
func TestFullHandshakeCompletion(t *testing.T) {
	client, server := pipePair(t)

	done := make(chan error, 2)
	go func() { done <- client.Handshake(context.Background()) }()
	go func() { done <- server.ServerHandshake(context.Background()) }()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("handshake failed: %v", err)
		}
	}

	if client.State() != StateApplication || server.State() != StateApplication {
		t.Fatalf("expected both sides Application, got client=%v server=%v", client.State(), server.State())
	}
	if client.peerEncrypt == nil || server.peerVerifying == nil {
		t.Fatal("expected peer crypto instances to be installed on both sides")
	}

	const msg = "hello over ptls"
	roundTrip := make(chan error, 2)
	go func() { roundTrip <- client.Send([]byte(msg)) }()
	go func() {
		got, err := server.Receive()
		if err == nil && string(got) != msg {
			t.Errorf("got %q, want %q", got, msg)
		}
		roundTrip <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-roundTrip; err != nil {
			t.Fatalf("post-handshake round trip failed: %v", err)
		}
	}
}

// TestAbbreviatedHandshake matches spec.md §8 property 9.
func TestAbbreviatedHandshake(t *testing.T) {
	client, server := pipePair(t)

	if err := client.SetPeerPublicKey(server.localKeyPair.PublicKey()); err != nil {
		t.Fatalf("SetPeerPublicKey: %v", err)
	}

	done := make(chan error, 2)
	go func() { done <- client.Handshake(context.Background()) }()
	go func() { done <- server.ServerHandshake(context.Background()) }()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("abbreviated handshake failed: %v", err)
		}
	}
	if client.State() != StateApplication || server.State() != StateApplication {
		t.Fatalf("expected both sides Application, got client=%v server=%v", client.State(), server.State())
	}

	const msg = "abbreviated"
	appDone := make(chan error, 2)
	go func() { appDone <- client.Send([]byte(msg)) }()
	go func() {
		got, err := server.Receive()
		if err == nil && string(got) != msg {
			t.Errorf("got %q, want %q", got, msg)
		}
		appDone <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-appDone; err != nil {
			t.Fatalf("post-handshake round trip failed: %v", err)
		}
	}
}

// TestFatalOnMisorder matches spec.md §8 property 10: sending
// ApplicationData to a server still in Handshake state is fatal.
func TestFatalOnMisorder(t *testing.T) {
	client, server := pipePair(t)
	_ = client

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.ServerHandshake(context.Background()) }()
	// Read the client side so the server's best-effort alert write on the
	// unbuffered pipe does not block.
	go func() { _, _, _ = client.framer.Receive() }()

	// Frame an ApplicationData record directly (bypassing Tunnel.Send,
	// which itself refuses to send before Application) to simulate a peer
	// that violates the message ordering discipline mid-handshake.
	if err := client.framer.Send(frame.ContentApplicationData, []byte{0x01}); err != nil {
		t.Fatalf("send raw application data: %v", err)
	}

	err := <-serverDone
	if err == nil {
		t.Fatal("expected server handshake to fail on misorder")
	}
	if server.State() != StateTerminated {
		t.Fatalf("expected server Terminated, got %v", server.State())
	}
}

func TestSendBeforeHandshakeIsNotReady(t *testing.T) {
	client, _ := pipePair(t)
	if err := client.Send([]byte("too early")); err != ErrNotReady {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestSendAfterTerminatedIsSocketDied(t *testing.T) {
	client, _ := pipePair(t)
	client.setState(StateTerminated)
	if err := client.Send([]byte("too late")); err != ErrSocketDied {
		t.Fatalf("expected ErrSocketDied, got %v", err)
	}
	if _, err := client.Receive(); err != ErrSocketDied {
		t.Fatalf("expected ErrSocketDied, got %v", err)
	}
}

func TestHandshakeTimeout(t *testing.T) {
	r, _ := io.Pipe() // never written to
	_, w := io.Pipe()
	kp := testKeyPair(t)
	tun, err := New(r, w, kp, crypto.HashSHA256, crypto.HashSHA256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tun.SetTimeout(50 * time.Millisecond)

	err = tun.ServerHandshake(context.Background())
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if tun.State() != StateTerminated {
		t.Fatalf("expected Terminated after timeout, got %v", tun.State())
	}
}

func TestPeerPublicKeyAppendOnly(t *testing.T) {
	client, server := pipePair(t)
	if err := client.SetPeerPublicKey(server.localKeyPair.PublicKey()); err != nil {
		t.Fatalf("first SetPeerPublicKey: %v", err)
	}
	if err := client.SetPeerPublicKey(server.localKeyPair.PublicKey()); err != ErrPeerKeyAlreadySet {
		t.Fatalf("expected ErrPeerKeyAlreadySet, got %v", err)
	}
}

func TestIntoInner(t *testing.T) {
	var buf bytes.Buffer
	kp := testKeyPair(t)
	tun, err := New(&buf, &buf, kp, crypto.HashSHA256, crypto.HashSHA256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, w := tun.IntoInner()
	if r != io.Reader(&buf) || w != io.Writer(&buf) {
		t.Fatal("expected IntoInner to return the original carrier halves")
	}
}
