package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"findash/internal/config"
	"findash/internal/remote"
)

func TestKVPathFor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"prh-finance.sqlite3", "prh-finance.json"},
		{"out/snap.db", "out/snap.json"},
		{"snapshot", "snapshot.json"},
	}
	for _, tt := range tests {
		if got := kvPathFor(tt.in); got != tt.want {
			t.Fatalf("kvPathFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeygenEncryptDecrypt(t *testing.T) {
	var out bytes.Buffer
	cmd := keygenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("keygen: %v", err)
	}
	key := strings.TrimSpace(out.String())
	if _, err := remote.ParseKey(key); err != nil {
		t.Fatalf("keygen printed an invalid key %q: %v", key, err)
	}

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(plain, []byte("ledger"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{DataKey: key}

	enc := encryptCmd(cfg)
	enc.SetArgs([]string{plain, filepath.Join(dir, "plain.enc")})
	if err := enc.Execute(); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec := decryptCmd(cfg)
	dec.SetArgs([]string{filepath.Join(dir, "plain.enc"), filepath.Join(dir, "round.txt")})
	if err := dec.Execute(); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "round.txt"))
	if err != nil || string(got) != "ledger" {
		t.Fatalf("round trip = %q, %v", got, err)
	}
}

func TestEncryptNeedsKey(t *testing.T) {
	cmd := encryptCmd(&config.Config{})
	cmd.SetArgs([]string{"a", "b"})
	cmd.SilenceUsage, cmd.SilenceErrors = true, true
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "DATA_KEY") {
		t.Fatalf("err = %v, want DATA_KEY error", err)
	}
}
