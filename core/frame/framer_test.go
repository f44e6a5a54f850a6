package frame

import (
	"bytes"
	"io"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ct   ContentType
		data []byte
	}{
		{"one byte", ContentApplicationData, []byte{0x7B}},
		{"handshake", ContentHandshake, bytes.Repeat([]byte{0x01}, 100)},
		{"alert", ContentAlert, []byte{0x03, 0x00}},
		{"max payload", ContentApplicationData, bytes.Repeat([]byte{0xFF}, MaxPayloadLength)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := New(&buf, &buf)
			if err := f.Send(tc.ct, tc.data); err != nil {
				t.Fatalf("Send: %v", err)
			}
			gotCT, gotPayload, err := f.Receive()
			if err != nil {
				t.Fatalf("Receive: %v", err)
			}
			if gotCT != tc.ct {
				t.Fatalf("content type: got %v, want %v", gotCT, tc.ct)
			}
			if !bytes.Equal(gotPayload, tc.data) {
				t.Fatalf("payload mismatch")
			}
		})
	}
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, &buf)
	if err := f.Send(ContentApplicationData, nil); err != ErrNoPayload {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
}

func TestSendRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, &buf)
	err := f.Send(ContentApplicationData, make([]byte, MaxPayloadLength+1))
	var tooLong *MessageTooLong
	if err == nil {
		t.Fatal("expected MessageTooLong")
	}
	if !asMessageTooLong(err, &tooLong) {
		t.Fatalf("expected *MessageTooLong, got %v", err)
	}
}

func asMessageTooLong(err error, target **MessageTooLong) bool {
	if m, ok := err.(*MessageTooLong); ok {
		*target = m
		return true
	}
	return false
}

// TestScenarioS1 matches spec.md §8 S1.
func TestScenarioS1(t *testing.T) {
	wire := []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x7B}
	f := New(bytes.NewReader(wire), io.Discard)
	ct, payload, err := f.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if ct != ContentApplicationData || !bytes.Equal(payload, []byte{0x7B}) {
		t.Fatalf("got (%v, %v)", ct, payload)
	}
}

// TestScenarioS2 matches spec.md §8 S2: unknown content type 0xFF.
func TestScenarioS2(t *testing.T) {
	wire := []byte{0x00, 0x00, 0xFF, 0x00, 0x01, 0x7B}
	r := bytes.NewReader(wire)
	f := New(r, io.Discard)
	_, _, err := f.Receive()
	unk, ok := err.(*UnknownContentType)
	if !ok {
		t.Fatalf("expected *UnknownContentType, got %v", err)
	}
	if unk.ContentType != 0xFF {
		t.Fatalf("got content type %d, want 255", unk.ContentType)
	}
	if r.Len() != 0 {
		t.Fatalf("expected payload to be fully drained, %d bytes left", r.Len())
	}
}

// TestScenarioS3 matches spec.md §8 S3: zero-length record.
func TestScenarioS3(t *testing.T) {
	wire := []byte{0x00, 0x00, 0x01, 0x00, 0x00}
	f := New(bytes.NewReader(wire), io.Discard)
	if _, _, err := f.Receive(); err != ErrNoPayload {
		t.Fatalf("expected ErrNoPayload, got %v", err)
	}
}

// TestScenarioS4 matches spec.md §8 S4: length 0xFFFF is too long.
func TestScenarioS4(t *testing.T) {
	wire := append([]byte{0x00, 0x00, 0x01, 0xFF, 0xFF}, make([]byte, 10)...)
	f := New(bytes.NewReader(wire), io.Discard)
	_, _, err := f.Receive()
	tooLong, ok := err.(*MessageTooLong)
	if !ok {
		t.Fatalf("expected *MessageTooLong, got %v", err)
	}
	if tooLong.Length != 0xFFFF {
		t.Fatalf("got length %d, want 65535", tooLong.Length)
	}
}

// TestScenarioS5 matches spec.md §8 S5: non-zero version.
func TestScenarioS5(t *testing.T) {
	wire := []byte{0x00, 0x01, 0x01, 0x00, 0x01, 0x7B}
	f := New(bytes.NewReader(wire), io.Discard)
	_, _, err := f.Receive()
	badVersion, ok := err.(*InappropriateVersion)
	if !ok {
		t.Fatalf("expected *InappropriateVersion, got %v", err)
	}
	if badVersion.Version != 1 {
		t.Fatalf("got version %d, want 1", badVersion.Version)
	}
}

// TestConcurrentSendReceive exercises the independent read/write locks: one
// goroutine writes while another reads, as spec.md §5 requires.
func TestConcurrentSendReceive(t *testing.T) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	client := New(clientR, clientW)
	server := New(serverR, serverW)

	done := make(chan error, 2)
	go func() {
		done <- client.Send(ContentApplicationData, []byte("ping"))
	}()
	go func() {
		_, payload, err := server.Receive()
		if err == nil && !bytes.Equal(payload, []byte("ping")) {
			err = bytes.ErrTooLarge
		}
		done <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent send/receive failed: %v", err)
		}
	}
}

func TestTwoSendsSerialize(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, &buf)
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			done <- f.Send(ContentApplicationData, []byte{byte(i)})
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, _, err := f.Receive(); err != nil {
			t.Fatalf("Receive: %v", err)
		}
	}
}
