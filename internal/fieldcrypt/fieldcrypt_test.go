package fieldcrypt

import (
	"bytes"
	"errors"
	"testing"
)

func testBox(t *testing.T) *Box {
	t.Helper()
	b, err := New(bytes.Repeat([]byte{7}, KeySize))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestSealOpen(t *testing.T) {
	b := testBox(t)
	sealed, err := b.Seal([]byte("000123456789"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("000123456789")) {
		t.Fatalf("sealed value leaks plaintext")
	}
	pt, err := b.Open(sealed)
	if err != nil || string(pt) != "000123456789" {
		t.Fatalf("Open = %q, %v", pt, err)
	}
	again, _ := b.Seal([]byte("000123456789"))
	if bytes.Equal(again, sealed) {
		t.Fatalf("nonce reuse: two seals produced identical output")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	b := testBox(t)
	sealed, _ := b.Seal([]byte("secret"))
	sealed[len(sealed)-1] ^= 0xff
	if _, err := b.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if _, err := b.Open([]byte{1, 2, 3}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	other, _ := New(bytes.Repeat([]byte{8}, KeySize))
	fresh, _ := b.Seal([]byte("secret"))
	if _, err := other.Open(fresh); !errors.Is(err, ErrOpen) {
		t.Fatalf("wrong key should fail, got %v", err)
	}
}

func TestKeyValidation(t *testing.T) {
	if _, err := New([]byte("short")); !errors.Is(err, ErrBadKey) {
		t.Fatalf("expected ErrBadKey, got %v", err)
	}
	if _, err := FromPassphrase("", []byte("saltsalt")); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
	if _, err := FromPassphrase("pw", []byte("x")); err == nil {
		t.Fatalf("expected error for short salt")
	}
	a, err := FromPassphrase("correct horse", []byte("ledgerdesk"))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := FromPassphrase("correct horse", []byte("ledgerdesk"))
	sealed, _ := a.Seal([]byte("v"))
	if pt, err := c.Open(sealed); err != nil || string(pt) != "v" {
		t.Fatalf("derived keys should match: %v", err)
	}
}
