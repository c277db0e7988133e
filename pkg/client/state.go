package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// SavedIdentity is the identity remembered across restarts. Its
// presence restores the session straight to Authenticated.
type SavedIdentity struct {
	UserID   string `json:"user_id"`
	UserName string `json:"userName"`
}

// LoadIdentity reads the remembered identity from path. A missing
// file means no saved identity and no error.
func LoadIdentity(path string) (*SavedIdentity, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var id SavedIdentity
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, err
	}
	if id.UserID == "" || id.UserName == "" {
		return nil, nil
	}
	return &id, nil
}

// SaveIdentity persists the identity for the next start.
func SaveIdentity(path string, id SavedIdentity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
