package banklens

import (
	"os"
	"path/filepath"
)

// Home returns the banklens home directory.
// It defaults to ~/.banklens but can be overridden with the BANKLENS_HOME
// environment variable.
func Home() string {
	if v := os.Getenv("BANKLENS_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".banklens")
}

// DefaultDBPath returns the default SQLite database path (~/.banklens/banklens.db).
func DefaultDBPath() string {
	return filepath.Join(Home(), "banklens.db")
}

// InboxPath returns the directory where uploaded statement PDFs are kept.
func InboxPath() string {
	return filepath.Join(Home(), "inbox")
}

// EnsureHome creates the banklens home and inbox directories if they don't exist.
func EnsureHome() error {
	return os.MkdirAll(InboxPath(), 0o755)
}
