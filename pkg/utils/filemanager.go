// =============================================================================
// Receipt Ledger - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the ledger, including:
//   - Atomic replacement of the ledger file
//   - Backups of the previous ledger before it is overwritten
//   - Backup file naming
//
// BACKUP STRATEGY:
//   - The ledger is copied (not moved) into the backup directory
//   - Backup names carry a timestamp and a short random id so two runs in
//     the same second never collide
//   - No backup is made when the ledger does not exist yet
//
// =============================================================================

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles ledger file operations.
type FileManager struct {
	// BackupDir receives copies of the previous ledger. Empty disables backups.
	BackupDir string

	// now is replaceable in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager.
func NewFileManager(backupDir string) *FileManager {
	return &FileManager{
		BackupDir: backupDir,
		now:       time.Now,
	}
}

// =============================================================================
// LEDGER WRITING
// =============================================================================

// ReplaceFile backs up the current file (when backups are enabled and the
// file exists) and then atomically replaces it with data.
//
// RETURNS:
//   - The backup path, or "" when no backup was made.
//   - An error if the backup or the write fails.
func (fm *FileManager) ReplaceFile(path string, data []byte) (string, error) {
	var backupPath string

	if fm.BackupDir != "" && FileExists(path) {
		var err error
		backupPath, err = fm.Backup(path)
		if err != nil {
			return "", err
		}
	}

	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return backupPath, err
	}

	return backupPath, nil
}

// Backup copies a file into the backup directory.
func (fm *FileManager) Backup(path string) (string, error) {
	if err := os.MkdirAll(fm.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(fm.BackupDir, GenerateBackupFileName(path, fm.now()))
	if err := copyFile(path, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}

	return backupPath, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers never observe a partial ledger.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateBackupFileName builds a backup name from the original file name.
//
// EXAMPLE:
//
//	path: "data/receipts.csv"
//	output: "receipts_20240115_143022_a1b2c3d4.csv"
func GenerateBackupFileName(path string, now time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	id := strings.SplitN(uuid.New().String(), "-", 2)[0]

	return fmt.Sprintf("%s_%s_%s%s", stem, now.Format("20060102_150405"), id, ext)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
