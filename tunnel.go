package ptls

import (
	"crypto/rsa"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ptls-project/ptls/core/crypto"
	"github.com/ptls-project/ptls/core/frame"
	"github.com/ptls-project/ptls/core/subproto"
)

// Tunnel multiplexes a handshake and an application-data channel over a
// single framed carrier stream. It owns its framer, its local crypto
// instances, and — once installed — the peer's crypto instances, plus the
// (state, peer_*) tuple a single mutex guards for the lifetime of the
// handshake.
type Tunnel struct {
	framer *frame.Framer

	localKeyPair *KeyPair
	localDecrypt *crypto.Decryptor
	localSigning *crypto.Signer
	sigHash      crypto.HashId
	padHash      crypto.HashId

	mu              sync.Mutex
	state           TunnelState
	peerEncrypt     *crypto.Encryptor
	peerVerifying   *crypto.Verifier
	peerPublicKey   *rsa.PublicKey
	signedPublicKey *SignedPublicKey
	handshakeTimeout time.Duration

	carrierR io.Reader
	carrierW io.Writer

	log zerolog.Logger
}

// New builds a tunnel over the carrier halves r/w, binding local
// encryption/signing to keyPair under the given signature and padding
// hashes. State starts as Handshake; peer_encrypt and peer_verifying are
// absent until a handshake completes or SetPeerPublicKey is called.
func New(r io.Reader, w io.Writer, keyPair *KeyPair, sigHash, padHash crypto.HashId) (*Tunnel, error) {
	dec, err := crypto.NewDecryptor(keyPair.Private, padHash)
	if err != nil {
		return nil, fmt.Errorf("ptls: local decryptor: %w", err)
	}
	sign, err := crypto.NewSigner(keyPair.Private, sigHash)
	if err != nil {
		return nil, fmt.Errorf("ptls: local signer: %w", err)
	}
	return &Tunnel{
		framer:       frame.New(r, w),
		localKeyPair: keyPair,
		localDecrypt: dec,
		localSigning: sign,
		sigHash:      sigHash,
		padHash:      padHash,
		state:        StateHandshake,
		carrierR:     r,
		carrierW:     w,
		log:          log.Logger,
	}, nil
}

// SetLogger overrides the tunnel's logger (defaults to the global
// zerolog.Logger).
func (t *Tunnel) SetLogger(l zerolog.Logger) { t.log = l }

// SetTimeout bounds how long Handshake/ServerHandshake may block waiting
// on the peer. Zero (the default) disables the timeout.
func (t *Tunnel) SetTimeout(d time.Duration) {
	t.mu.Lock()
	t.handshakeTimeout = d
	t.mu.Unlock()
}

// SetPeerPublicKey hard-codes a known peer key ahead of time, enabling the
// abbreviated handshake. Peer keys are append-only: a second call returns
// ErrPeerKeyAlreadySet.
func (t *Tunnel) SetPeerPublicKey(pub *rsa.PublicKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peerPublicKey != nil {
		return ErrPeerKeyAlreadySet
	}
	enc, err := crypto.NewEncryptor(pub, t.padHash)
	if err != nil {
		return fmt.Errorf("ptls: peer encryptor: %w", err)
	}
	t.peerPublicKey = pub
	t.peerEncrypt = enc
	return nil
}

// SetSignedPublicKey installs the server-side identity bundle ServerHello
// presents. Callers must set this before invoking ServerHandshake; it is
// immutable thereafter.
func (t *Tunnel) SetSignedPublicKey(spk *SignedPublicKey) {
	t.mu.Lock()
	t.signedPublicKey = spk
	t.mu.Unlock()
}

// State reports the tunnel's current lifecycle position.
func (t *Tunnel) State() TunnelState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// PeerPublicKey returns the peer's public key once known — either
// hard-coded via SetPeerPublicKey or installed by a completed handshake —
// and nil before that.
func (t *Tunnel) PeerPublicKey() *rsa.PublicKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerPublicKey
}

func (t *Tunnel) setState(s TunnelState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// installPeer sets peer_encrypt/peer_verifying from a just-received key.
// peer_public_key is append-only: a tunnel that already has one (via
// SetPeerPublicKey or a prior handshake) refuses to overwrite it.
func (t *Tunnel) installPeer(pub *rsa.PublicKey, padHash, sigHash crypto.HashId) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.peerPublicKey != nil {
		return ErrPeerKeyAlreadySet
	}
	enc, err := crypto.NewEncryptor(pub, padHash)
	if err != nil {
		return fmt.Errorf("ptls: peer encryptor: %w", err)
	}
	ver, err := crypto.NewVerifier(pub, sigHash)
	if err != nil {
		return fmt.Errorf("ptls: peer verifier: %w", err)
	}
	t.peerPublicKey = pub
	t.peerEncrypt = enc
	t.peerVerifying = ver
	return nil
}

// fail transitions the tunnel to Terminated and logs the cause, returning
// err unchanged so call sites can `return t.fail(err)`.
func (t *Tunnel) fail(err error) error {
	t.setState(StateTerminated)
	t.log.Error().Err(err).Msg("[tunnel] terminating")
	return err
}

// sendAlert best-effort sends an Alert record: encrypted under the peer
// key once in Application state, plaintext before. Failures to send the
// alert itself are logged and swallowed — the tunnel is already on its
// way to Terminated regardless.
func (t *Tunnel) sendAlert(body subproto.AlertBody, fatal bool) {
	t.mu.Lock()
	st := t.state
	enc := t.peerEncrypt
	t.mu.Unlock()

	flags := subproto.AlertFlags(0)
	if fatal {
		flags |= subproto.FlagFatal
	}
	bodyBytes := subproto.EncodeAlertBody(body)
	if st == StateApplication && enc != nil {
		flags |= subproto.FlagEncrypted
		ciphertext, err := enc.Encrypt(bodyBytes)
		if err != nil {
			t.log.Warn().Err(err).Msg("[tunnel] failed to encrypt outgoing alert")
			return
		}
		bodyBytes = ciphertext
	}
	payload := append([]byte{byte(flags)}, bodyBytes...)
	if err := t.framer.Send(frame.ContentAlert, payload); err != nil {
		t.log.Warn().Err(err).Msg("[tunnel] failed to send alert")
	}
}

// Send encrypts data under the peer's public key and writes it as an
// ApplicationData record. Permitted only in Application state.
func (t *Tunnel) Send(data []byte) error {
	t.mu.Lock()
	st := t.state
	enc := t.peerEncrypt
	t.mu.Unlock()

	if st == StateHandshake {
		return ErrNotReady
	}
	if st.dead() || enc == nil {
		return ErrSocketDied
	}

	ciphertext, err := enc.Encrypt(data)
	if err != nil {
		return t.fail(fmt.Errorf("encrypt application data: %w", err))
	}
	if err := t.framer.Send(frame.ContentApplicationData, ciphertext); err != nil {
		return t.fail(fmt.Errorf("write application data: %w", err))
	}
	return nil
}

// Receive reads one framed record, routing it by content type: decrypted
// ApplicationData is returned to the caller, Alerts are processed and
// looped past (see handleInboundAlert), and a Handshake record arriving
// post-handshake is a fatal InappropriateMessage since key rotation is
// not wired into this state machine.
func (t *Tunnel) Receive() ([]byte, error) {
	for {
		t.mu.Lock()
		st := t.state
		t.mu.Unlock()
		if st.dead() {
			return nil, ErrSocketDied
		}

		ct, payload, err := t.framer.Receive()
		if err != nil {
			return nil, t.fail(fmt.Errorf("read record: %w", err))
		}

		switch ct {
		case frame.ContentApplicationData:
			t.mu.Lock()
			st := t.state
			dec := t.localDecrypt
			t.mu.Unlock()
			if st != StateApplication {
				t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(frame.ContentHandshake), Got: byte(ct)}, true)
				return nil, t.fail(ErrInappropriateMessage)
			}
			plaintext, err := dec.Decrypt(payload)
			if err != nil {
				return nil, t.fail(fmt.Errorf("decrypt application data: %w", err))
			}
			return plaintext, nil

		case frame.ContentAlert:
			if err := t.handleInboundAlert(payload); err != nil {
				return nil, err
			}
			continue

		case frame.ContentHandshake:
			t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(frame.ContentApplicationData), Got: byte(ct)}, true)
			return nil, t.fail(ErrInappropriateMessage)

		default:
			return nil, t.fail(fmt.Errorf("unhandled content type %d", ct))
		}
	}
}

// handleInboundAlert decodes an Alert record's body — decrypting it first
// whenever the encrypted flag is set — and applies §9's
// policies: an unencrypted alert received after the handshake completed
// is ignored (an on-path attacker cannot inject post-handshake alerts); a
// fatal alert terminates the tunnel; KeyUpdate and any other non-fatal
// alert is logged and otherwise has no effect.
func (t *Tunnel) handleInboundAlert(payload []byte) error {
	if len(payload) < 1 {
		return t.fail(subproto.ErrTruncated)
	}
	flags := subproto.AlertFlags(payload[0])
	rest := payload[1:]

	t.mu.Lock()
	st := t.state
	dec := t.localDecrypt
	t.mu.Unlock()

	if st == StateApplication && !flags.Encrypted() {
		t.log.Warn().Msg("[tunnel] ignoring unencrypted alert after handshake")
		return nil
	}
	if flags.Encrypted() {
		plaintext, err := dec.Decrypt(rest)
		if err != nil {
			return t.fail(fmt.Errorf("decrypt alert: %w", err))
		}
		rest = plaintext
	}
	body, err := subproto.DecodeAlertBody(rest)
	if err != nil {
		return t.fail(fmt.Errorf("decode alert: %w", err))
	}
	t.log.Info().Str("kind", fmt.Sprintf("%T", body)).Bool("fatal", flags.Fatal()).Msg("[tunnel] received alert")
	if flags.Fatal() {
		return t.fail(newHandshakeError(body, fmt.Errorf("peer sent fatal alert")))
	}
	return nil
}

// IntoInner hands back the carrier halves the tunnel was built with,
// consuming the tunnel's exclusive ownership of them.
func (t *Tunnel) IntoInner() (io.Reader, io.Writer) {
	return t.carrierR, t.carrierW
}

// Close best-effort notifies the peer (a non-fatal Close alert, if in
// Application state) and closes the underlying carrier if it implements
// io.Closer.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	st := t.state
	t.mu.Unlock()

	switch st {
	case StateApplication:
		t.sendAlert(subproto.CloseBody{}, false)
		t.setState(StateGracefullyDisconnected)
	case StateHandshake:
		t.setState(StateTerminated)
	}

	if c, ok := t.carrierW.(io.Closer); ok {
		return c.Close()
	}
	if c, ok := t.carrierR.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
