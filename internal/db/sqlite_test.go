package db_test

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/tensors-cli/tensors/internal/db"
)

func openTestDB(t *testing.T, path string) *db.DB {
	t.Helper()

	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		db.Close(d)
	})
	if err := db.Migrate(d); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	return d
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", db.Filename)
	d := openTestDB(t, dbPath)
	if d.Path() != dbPath {
		t.Fatalf("Path() = %q, want %q", d.Path(), dbPath)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("expected database file to exist at %q: %v", dbPath, err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := db.Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t, filepath.Join(t.TempDir(), db.Filename))
	if err := db.Migrate(d); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}

func TestUpsertAndListWallets(t *testing.T) {
	d := openTestDB(t, filepath.Join(t.TempDir(), db.Filename))

	alice := db.WalletRow{
		Name:           "alice",
		SS58Address:    "5H8yqMeyP4i8ZYVd7i2rNgPZawgdJnhkQ92sSfJfguF8RbWd",
		PublicKey:      "0xe06feefcde9ee212c0a05c365f509d0228d52371369094ac60dea4a798f1d477",
		Scheme:         "sr25519",
		EncryptionType: "nacl",
	}
	bob := db.WalletRow{
		Name:           "bob",
		SS58Address:    "5GgCFj7cRKnbTmQiGY6ETFd7Kzuu5meE9UCJ9VsU8hH4hxpt",
		PublicKey:      "0xcc021e1ea090a00320976d4ea549200b31abe936337449cd064e20f3a6572ab9",
		Scheme:         "ed25519",
		EncryptionType: "nacl",
	}

	for _, w := range []db.WalletRow{bob, alice} {
		if err := db.UpsertWallet(d, w); err != nil {
			t.Fatalf("UpsertWallet(%s): %v", w.Name, err)
		}
	}

	rows, err := db.ListWallets(d)
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "alice" || rows[1].Name != "bob" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].CreatedAt == "" || rows[0].UpdatedAt == "" {
		t.Fatalf("expected timestamps, got %+v", rows[0])
	}

	// Regenerating alice with another scheme replaces the public fields.
	alice.SS58Address = bob.SS58Address
	alice.Scheme = "ed25519"
	if err := db.UpsertWallet(d, alice); err != nil {
		t.Fatalf("UpsertWallet update: %v", err)
	}

	got, err := db.GetWallet(d, "alice")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.SS58Address != bob.SS58Address || got.Scheme != "ed25519" {
		t.Fatalf("upsert did not update row: %+v", got)
	}

	rows, err = db.ListWallets(d)
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after update, got %d", len(rows))
	}
}

func TestGetAndDeleteMissingWallet(t *testing.T) {
	d := openTestDB(t, filepath.Join(t.TempDir(), db.Filename))

	if _, err := db.GetWallet(d, "ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := db.DeleteWallet(d, "ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}

	if err := db.UpsertWallet(d, db.WalletRow{Name: "ghost", SS58Address: "5x", PublicKey: "0x", Scheme: "sr25519", EncryptionType: "nacl"}); err != nil {
		t.Fatalf("UpsertWallet: %v", err)
	}
	if err := db.DeleteWallet(d, "ghost"); err != nil {
		t.Fatalf("DeleteWallet: %v", err)
	}
}

func TestNilHandle(t *testing.T) {
	if err := db.Migrate(nil); err == nil {
		t.Fatal("expected error for nil handle")
	}
	if _, err := db.ListWallets(nil); err == nil {
		t.Fatal("expected error for nil handle")
	}
	if err := db.Close(nil); err != nil {
		t.Fatalf("Close(nil) = %v", err)
	}
}
