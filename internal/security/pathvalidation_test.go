package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	sessionsDir := filepath.Join(tmpDir, "sessions")
	outsideDir := filepath.Join(tmpDir, "outside")
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		t.Fatalf("Failed to create sessions directory: %v", err)
	}
	if err := os.MkdirAll(outsideDir, 0755); err != nil {
		t.Fatalf("Failed to create outside directory: %v", err)
	}

	outsideFile := filepath.Join(outsideDir, "other.arlog")
	if err := os.WriteFile(outsideFile, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create outside file: %v", err)
	}

	// A symlink inside the allowed directory pointing out of it.
	symlinkPath := filepath.Join(sessionsDir, "escape")
	if err := os.Symlink(outsideDir, symlinkPath); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{
			name:      "session log directly in directory",
			filePath:  filepath.Join(sessionsDir, "capture.arlog"),
			safeDir:   sessionsDir,
			wantError: false,
		},
		{
			name:      "session log in nested directory",
			filePath:  filepath.Join(sessionsDir, "2026-08", "capture.arlog"),
			safeDir:   sessionsDir,
			wantError: false,
		},
		{
			name:      "dot-dot traversal",
			filePath:  filepath.Join(sessionsDir, "..", "capture.arlog"),
			safeDir:   sessionsDir,
			wantError: true,
		},
		{
			name:      "relative traversal from outside",
			filePath:  "../../../etc/passwd",
			safeDir:   sessionsDir,
			wantError: true,
		},
		{
			name:      "absolute path outside directory",
			filePath:  "/etc/passwd",
			safeDir:   sessionsDir,
			wantError: true,
		},
		{
			name:      "file reached through escaping symlink",
			filePath:  filepath.Join(symlinkPath, "other.arlog"),
			safeDir:   sessionsDir,
			wantError: true,
		},
		{
			name:      "escaping symlink itself",
			filePath:  symlinkPath,
			safeDir:   sessionsDir,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	dataDir := t.TempDir()
	backupDir := t.TempDir()

	tests := []struct {
		name        string
		filePath    string
		allowedDirs []string
		wantError   bool
	}{
		{
			name:        "path in first allowed dir",
			filePath:    filepath.Join(dataDir, "session.arlog"),
			allowedDirs: []string{dataDir, backupDir},
			wantError:   false,
		},
		{
			name:        "path in second allowed dir",
			filePath:    filepath.Join(backupDir, "backup.db"),
			allowedDirs: []string{dataDir, backupDir},
			wantError:   false,
		},
		{
			name:        "path outside all dirs",
			filePath:    "/etc/passwd",
			allowedDirs: []string{dataDir, backupDir},
			wantError:   true,
		},
		{
			name:        "no allowed directories",
			filePath:    filepath.Join(dataDir, "session.arlog"),
			allowedDirs: []string{},
			wantError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinAllowedDirs(tt.filePath, tt.allowedDirs)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinAllowedDirs() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateExportPath(t *testing.T) {
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current directory: %v", err)
	}

	tmpDir := t.TempDir()

	tests := []struct {
		name      string
		filePath  string
		setupWd   string
		wantError bool
	}{
		{
			name:      "session log in temp dir",
			filePath:  filepath.Join(os.TempDir(), "session.arlog"),
			setupWd:   originalWd,
			wantError: false,
		},
		{
			name:      "session log in working dir",
			filePath:  "session.arlog",
			setupWd:   tmpDir,
			wantError: false,
		},
		{
			name:      "absolute path elsewhere",
			filePath:  "/etc/passwd",
			setupWd:   originalWd,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setupWd != "" && tt.setupWd != originalWd {
				if err := os.Chdir(tt.setupWd); err != nil {
					t.Fatalf("Failed to change directory: %v", err)
				}
				t.Cleanup(func() {
					if err := os.Chdir(originalWd); err != nil {
						t.Errorf("Failed to restore directory: %v", err)
					}
				})
			}

			err := ValidateExportPath(tt.filePath)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateExportPath() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
