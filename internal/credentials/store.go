// Package credentials persists the WiFi network the device joins.
package credentials

import (
	"errors"
	"fmt"

	"github.com/jgoulah/thermonode/pkg/models"
)

const (
	namespace   = "wifi"
	keySSID     = "ssid"
	keyPassword = "password"
)

// ErrIncomplete is returned when saving credentials with an empty field
var ErrIncomplete = errors.New("ssid and password are required")

// Preferences is the non-volatile key/value storage backing the store
type Preferences interface {
	GetString(namespace, key, def string) (string, error)
	PutStrings(namespace string, values map[string]string) error
	Clear(namespace string) error
}

// Store reads and writes credentials in the "wifi" namespace
type Store struct {
	prefs Preferences
}

// NewStore creates a store on top of prefs
func NewStore(prefs Preferences) *Store {
	return &Store{prefs: prefs}
}

// Load returns the stored credentials. Missing keys come back empty; check Valid before use.
func (s *Store) Load() (models.Credentials, error) {
	ssid, err := s.prefs.GetString(namespace, keySSID, "")
	if err != nil {
		return models.Credentials{}, fmt.Errorf("loading ssid: %w", err)
	}
	password, err := s.prefs.GetString(namespace, keyPassword, "")
	if err != nil {
		return models.Credentials{}, fmt.Errorf("loading password: %w", err)
	}

	return models.Credentials{SSID: ssid, Password: password}, nil
}

// Save persists both fields together. Nothing is written when either is empty.
func (s *Store) Save(c models.Credentials) error {
	if !c.Valid() {
		return ErrIncomplete
	}

	if err := s.prefs.PutStrings(namespace, map[string]string{
		keySSID:     c.SSID,
		keyPassword: c.Password,
	}); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	return nil
}

// Clear wipes the stored credentials
func (s *Store) Clear() error {
	return s.prefs.Clear(namespace)
}
