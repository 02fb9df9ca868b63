package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestGenerateBackupFileName(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)
	name := GenerateBackupFileName("data/receipts.csv", now)

	pattern := regexp.MustCompile(`^receipts_20240115_143022_[0-9a-f]{8}\.csv$`)
	if !pattern.MatchString(name) {
		t.Errorf("GenerateBackupFileName() = %q", name)
	}

	if other := GenerateBackupFileName("data/receipts.csv", now); other == name {
		t.Error("two backups in the same second should get different names")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "receipts.csv")

	if err := WriteFileAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestReplaceFileWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipts.csv")
	backupDir := filepath.Join(dir, "backup")

	fm := NewFileManager(backupDir)

	backup, err := fm.ReplaceFile(path, []byte("v1"))
	if err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}
	if backup != "" {
		t.Errorf("first write should not back up, got %q", backup)
	}

	backup, err = fm.ReplaceFile(path, []byte("v2"))
	if err != nil {
		t.Fatalf("ReplaceFile() error = %v", err)
	}
	if backup == "" {
		t.Fatal("second write should back up the previous ledger")
	}

	old, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(old) != "v1" {
		t.Errorf("backup content = %q, want v1", old)
	}
	current, _ := os.ReadFile(path)
	if string(current) != "v2" {
		t.Errorf("ledger content = %q, want v2", current)
	}
}

func TestReplaceFileWithoutBackupDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipts.csv")
	fm := NewFileManager("")

	for _, content := range []string{"a", "b"} {
		backup, err := fm.ReplaceFile(path, []byte(content))
		if err != nil {
			t.Fatalf("ReplaceFile() error = %v", err)
		}
		if backup != "" {
			t.Errorf("backup = %q, want none", backup)
		}
	}
}
