package ptls

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ptls-project/ptls/core/frame"
	"github.com/ptls-project/ptls/core/subproto"
)

// receiveRecord reads one framed record, racing it against the configured
// handshake timeout (if any) and ctx's own deadline, per spec.md §9's
// design note on racing receive against a timer. The underlying read
// still runs to completion on its own goroutine if it loses the race; by
// the time it resolves the tunnel has already moved to Terminated, so its
// result is discarded.
func (t *Tunnel) receiveRecord(ctx context.Context) (frame.ContentType, []byte, error) {
	t.mu.Lock()
	timeout := t.handshakeTimeout
	t.mu.Unlock()

	if timeout <= 0 && ctx.Done() == nil {
		return t.framer.Receive()
	}

	type result struct {
		ct      frame.ContentType
		payload []byte
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		ct, payload, err := t.framer.Receive()
		ch <- result{ct, payload, err}
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case r := <-ch:
		return r.ct, r.payload, r.err
	case <-timeoutCh:
		return 0, nil, ErrTimeout
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("ptls: generate nonce: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func encodeNonce(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

// Handshake runs the client role: a full handshake (ClientHello /
// ServerHello / Finished) unless SetPeerPublicKey already installed a
// known server key, in which case it runs the abbreviated, single-message
// form instead.
func (t *Tunnel) Handshake(ctx context.Context) error {
	t.mu.Lock()
	abbreviated := t.peerEncrypt != nil
	t.mu.Unlock()
	if abbreviated {
		return t.abbreviatedHandshake()
	}
	return t.fullHandshakeClient(ctx)
}

func (t *Tunnel) fullHandshakeClient(ctx context.Context) error {
	hello := &subproto.ClientHello{
		PublicKeyDER:  t.localKeyPair.PublicKeyDER(),
		SignatureHash: t.sigHash,
		PaddingHash:   t.padHash,
	}
	if err := t.framer.Send(frame.ContentHandshake, subproto.EncodeClientHello(hello)); err != nil {
		return t.fail(fmt.Errorf("send client hello: %w", err))
	}
	t.log.Info().Msg("[tunnel] sent ClientHello")

	ct, payload, err := t.receiveRecord(ctx)
	if err != nil {
		return t.fail(err)
	}
	if ct != frame.ContentHandshake {
		t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(frame.ContentHandshake), Got: byte(ct)}, true)
		return t.fail(ErrInappropriateMessage)
	}
	if len(payload) < 1 {
		return t.fail(subproto.ErrTruncated)
	}
	tag := subproto.HandshakeType(payload[0])
	if tag != subproto.TypeServerHello {
		t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(subproto.TypeServerHello), Got: byte(tag)}, true)
		return t.fail(ErrInappropriateMessage)
	}

	plaintext, err := t.localDecrypt.Decrypt(payload[1:])
	if err != nil {
		t.sendAlert(subproto.DecryptErrorBody{}, true)
		return t.fail(fmt.Errorf("decrypt server hello: %w", err))
	}
	sh, err := subproto.DecodeServerHelloBody(plaintext)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInvalidContentType}, true)
		return t.fail(fmt.Errorf("decode server hello: %w", err))
	}

	serverPub, err := ParsePublicKeyDER(sh.PublicKeyDER)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInappropriatePublicKey}, true)
		return t.fail(err)
	}
	// ca_signature/trusted_authority_id travel here but verifying them
	// against a trust.Store is left uninvoked: §9's open question.
	if err := t.installPeer(serverPub, sh.PaddingHash, sh.SignatureHash); err != nil {
		return t.fail(err)
	}
	t.log.Info().Str("authority", sh.TrustedAuthorityID).Msg("[tunnel] received ServerHello")

	return t.sendFinished()
}

func (t *Tunnel) sendFinished() error {
	nonce, err := randomNonce()
	if err != nil {
		return t.fail(err)
	}
	sig, err := t.localSigning.Sign(encodeNonce(nonce))
	if err != nil {
		return t.fail(fmt.Errorf("sign finished nonce: %w", err))
	}
	body := subproto.EncodeFinishedBody(&subproto.Finished{Random: nonce, RandomSignature: sig})

	t.mu.Lock()
	enc := t.peerEncrypt
	t.mu.Unlock()
	ciphertext, err := enc.Encrypt(body)
	if err != nil {
		return t.fail(fmt.Errorf("encrypt finished: %w", err))
	}
	payload := append([]byte{byte(subproto.TypeFinished)}, ciphertext...)
	if err := t.framer.Send(frame.ContentHandshake, payload); err != nil {
		return t.fail(fmt.Errorf("send finished: %w", err))
	}

	t.setState(StateApplication)
	t.log.Info().Msg("[tunnel] handshake complete (client)")
	return nil
}

func (t *Tunnel) abbreviatedHandshake() error {
	nonce, err := randomNonce()
	if err != nil {
		return t.fail(err)
	}
	sig, err := t.localSigning.Sign(encodeNonce(nonce))
	if err != nil {
		return t.fail(fmt.Errorf("sign client hello nonce: %w", err))
	}
	msg := &subproto.EncryptedClientHello{
		PublicKeyDER:    t.localKeyPair.PublicKeyDER(),
		SignatureHash:   t.sigHash,
		PaddingHash:     t.padHash,
		Random:          nonce,
		RandomSignature: sig,
	}
	body := subproto.EncodeEncryptedClientHelloBody(msg)

	t.mu.Lock()
	enc := t.peerEncrypt
	t.mu.Unlock()
	ciphertext, err := enc.Encrypt(body)
	if err != nil {
		return t.fail(fmt.Errorf("encrypt encrypted client hello: %w", err))
	}
	payload := append([]byte{byte(subproto.TypeEncryptedClientHello)}, ciphertext...)
	if err := t.framer.Send(frame.ContentHandshake, payload); err != nil {
		return t.fail(fmt.Errorf("send encrypted client hello: %w", err))
	}

	t.setState(StateApplication)
	t.log.Info().Msg("[tunnel] handshake complete (client, abbreviated)")
	return nil
}

// ServerHandshake runs the server role. It accepts either a ClientHello
// (full handshake) or an EncryptedClientHello (abbreviated handshake) as
// the opening message; any other inner type is a fatal
// InappropriateMessage.
func (t *Tunnel) ServerHandshake(ctx context.Context) error {
	ct, payload, err := t.receiveRecord(ctx)
	if err != nil {
		return t.fail(err)
	}
	if ct != frame.ContentHandshake {
		t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(frame.ContentHandshake), Got: byte(ct)}, true)
		return t.fail(ErrInappropriateMessage)
	}
	if len(payload) < 1 {
		return t.fail(subproto.ErrTruncated)
	}

	tag := subproto.HandshakeType(payload[0])
	switch tag {
	case subproto.TypeClientHello:
		return t.serverFullHandshake(ctx, payload[1:])
	case subproto.TypeEncryptedClientHello:
		return t.serverAbbreviatedHandshake(payload[1:])
	default:
		t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(subproto.TypeClientHello), Got: byte(tag)}, true)
		return t.fail(ErrInappropriateMessage)
	}
}

func (t *Tunnel) serverFullHandshake(ctx context.Context, body []byte) error {
	ch, err := subproto.DecodeClientHelloBody(body)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInvalidContentType}, true)
		return t.fail(fmt.Errorf("decode client hello: %w", err))
	}
	clientPub, err := ParsePublicKeyDER(ch.PublicKeyDER)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInappropriatePublicKey}, true)
		return t.fail(err)
	}
	if err := t.installPeer(clientPub, ch.PaddingHash, ch.SignatureHash); err != nil {
		return t.fail(err)
	}
	t.log.Info().Msg("[tunnel] received ClientHello")

	t.mu.Lock()
	spk := t.signedPublicKey
	enc := t.peerEncrypt
	t.mu.Unlock()

	sh := &subproto.ServerHello{
		PublicKeyDER:  t.localKeyPair.PublicKeyDER(),
		SignatureHash: t.sigHash,
		PaddingHash:   t.padHash,
	}
	if spk != nil {
		sh.ExpiresAt = spk.ExpiresAt
		sh.TrustedAuthorityID = spk.TrustedAuthorityID
		sh.CASignature = spk.CASignature
	}
	ciphertext, err := enc.Encrypt(subproto.EncodeServerHelloBody(sh))
	if err != nil {
		return t.fail(fmt.Errorf("encrypt server hello: %w", err))
	}
	outPayload := append([]byte{byte(subproto.TypeServerHello)}, ciphertext...)
	if err := t.framer.Send(frame.ContentHandshake, outPayload); err != nil {
		return t.fail(fmt.Errorf("send server hello: %w", err))
	}
	t.log.Info().Msg("[tunnel] sent ServerHello")

	ct, payload, err := t.receiveRecord(ctx)
	if err != nil {
		return t.fail(err)
	}
	if ct != frame.ContentHandshake {
		t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(frame.ContentHandshake), Got: byte(ct)}, true)
		return t.fail(ErrInappropriateMessage)
	}
	if len(payload) < 1 {
		return t.fail(subproto.ErrTruncated)
	}
	tag := subproto.HandshakeType(payload[0])
	if tag != subproto.TypeFinished {
		t.sendAlert(subproto.InappropriateMessageBody{Expected: byte(subproto.TypeFinished), Got: byte(tag)}, true)
		return t.fail(ErrInappropriateMessage)
	}

	plaintext, err := t.localDecrypt.Decrypt(payload[1:])
	if err != nil {
		t.sendAlert(subproto.DecryptErrorBody{}, true)
		return t.fail(fmt.Errorf("decrypt finished: %w", err))
	}
	fin, err := subproto.DecodeFinishedBody(plaintext)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInvalidContentType}, true)
		return t.fail(fmt.Errorf("decode finished: %w", err))
	}

	t.mu.Lock()
	ver := t.peerVerifying
	t.mu.Unlock()
	if err := ver.Verify(encodeNonce(fin.Random), fin.RandomSignature); err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInvalidSignature}, true)
		return t.fail(fmt.Errorf("verify finished nonce: %w", err))
	}

	t.setState(StateApplication)
	t.log.Info().Msg("[tunnel] handshake complete (server)")
	return nil
}

func (t *Tunnel) serverAbbreviatedHandshake(body []byte) error {
	plaintext, err := t.localDecrypt.Decrypt(body)
	if err != nil {
		t.sendAlert(subproto.DecryptErrorBody{}, true)
		return t.fail(fmt.Errorf("decrypt encrypted client hello: %w", err))
	}
	ech, err := subproto.DecodeEncryptedClientHelloBody(plaintext)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInvalidContentType}, true)
		return t.fail(fmt.Errorf("decode encrypted client hello: %w", err))
	}
	clientPub, err := ParsePublicKeyDER(ech.PublicKeyDER)
	if err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInappropriatePublicKey}, true)
		return t.fail(err)
	}
	if err := t.installPeer(clientPub, ech.PaddingHash, ech.SignatureHash); err != nil {
		return t.fail(err)
	}

	t.mu.Lock()
	ver := t.peerVerifying
	t.mu.Unlock()
	if err := ver.Verify(encodeNonce(ech.Random), ech.RandomSignature); err != nil {
		t.sendAlert(subproto.HandshakeErrorBody{Subkind: subproto.HandshakeErrorInvalidSignature}, true)
		return t.fail(fmt.Errorf("verify nonce: %w", err))
	}

	t.setState(StateApplication)
	t.log.Info().Msg("[tunnel] handshake complete (server, abbreviated)")
	return nil
}
