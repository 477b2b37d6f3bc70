package codec_test

import (
	"bytes"
	"testing"

	"github.com/reoring/entikit/codec"
)

func TestBase64_RoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xfe, 0xff}
	s := codec.EncodeBase64(raw)
	back, err := codec.DecodeBase64("blob", s)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Fatalf("round trip mismatch: %v vs %v", back, raw)
	}
}

func TestDecodeBase64_Invalid(t *testing.T) {
	if _, err := codec.DecodeBase64("blob", "not-base64!!"); err == nil {
		t.Fatalf("expected error")
	}
}
