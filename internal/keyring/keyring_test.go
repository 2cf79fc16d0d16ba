package keyring

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOrCreate_PersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".secret")
	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("create keyring failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 key file, got %v", info.Mode().Perm())
	}

	sealed, err := first.Seal("sk-test-123")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if strings.Contains(sealed, "sk-test-123") {
		t.Fatal("sealed value contains plaintext")
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reload keyring failed: %v", err)
	}
	plain, err := second.Open(sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if plain != "sk-test-123" {
		t.Fatalf("expected round trip, got %q", plain)
	}
}

func TestLoadOrCreate_RejectsBadKeySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secret")
	if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreate(path); err == nil {
		t.Fatal("expected invalid key size error")
	}
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	k, err := New(bytes.Repeat([]byte{7}, keySize))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := k.Seal("same")
	b, _ := k.Seal("same")
	if a == b {
		t.Fatal("expected different ciphertexts for the same plaintext")
	}
	if out, _ := k.Seal(""); out != "" {
		t.Fatalf("expected empty seal, got %q", out)
	}
}

func TestOpen_WrongKeyFails(t *testing.T) {
	k1, _ := New(bytes.Repeat([]byte{1}, keySize))
	k2, _ := New(bytes.Repeat([]byte{2}, keySize))
	sealed, err := k1.Seal("sk-x")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k2.Open(sealed); err == nil {
		t.Fatal("expected open with wrong key to fail")
	}
	if _, err := k1.Open("AAAA"); err != ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}
