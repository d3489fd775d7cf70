package security

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := testCipher(t)
	aad := CredentialAAD("t-acme", "stripe")
	plain := []byte(`{"secret_key":"sk_test_123"}`)

	ct, err := c.Encrypt(plain, aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains([]byte(ct), []byte("sk_test")) {
		t.Fatal("ciphertext leaks plaintext")
	}
	got, err := c.Decrypt(ct, aad)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Decrypt = %q, want %q", got, plain)
	}

	ct2, _ := c.Encrypt(plain, aad)
	if ct == ct2 {
		t.Error("two encryptions should use different nonces")
	}
}

func TestCipher_BoundToAAD(t *testing.T) {
	c := testCipher(t)
	ct, err := c.Encrypt([]byte("secret"), CredentialAAD("t-acme", "stripe"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c.Decrypt(ct, CredentialAAD("t-other", "stripe")); err != ErrDecrypt {
		t.Errorf("Decrypt with other tenant err = %v, want ErrDecrypt", err)
	}
}

func TestCipher_TamperDetection(t *testing.T) {
	c := testCipher(t)
	aad := CredentialAAD("t-acme", "meta_ads")
	ct, err := c.Encrypt([]byte("secret"), aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xff
	if _, err := c.Decrypt(base64.StdEncoding.EncodeToString(raw), aad); err != ErrDecrypt {
		t.Errorf("tampered err = %v, want ErrDecrypt", err)
	}
	for _, bad := range []string{"", "!!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := c.Decrypt(bad, aad); err != ErrDecrypt {
			t.Errorf("Decrypt(%q) err = %v, want ErrDecrypt", bad, err)
		}
	}
}

func TestNewCipher_KeySize(t *testing.T) {
	if _, err := NewCipher([]byte("short")); err != ErrInvalidKey {
		t.Errorf("NewCipher(short) err = %v, want ErrInvalidKey", err)
	}
}
