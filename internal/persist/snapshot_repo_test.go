package persist

import (
	"errors"
	"testing"
)

func TestSnapshotChecksum(t *testing.T) {
	row := &SnapshotRow{ID: 7, World: "main", Data: []byte("WRLD payload")}
	row.Checksum = Checksum(row.Data)
	if len(row.Checksum) != 32 {
		t.Fatalf("expected 32-byte digest, got %d", len(row.Checksum))
	}
	if err := row.Verify(); err != nil {
		t.Fatalf("expected intact row to verify, got %v", err)
	}

	row.Data[0] ^= 0xFF
	if err := row.Verify(); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
}
