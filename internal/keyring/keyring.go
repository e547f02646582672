// Package keyring keeps habitrun secrets, such as the PostgreSQL connection
// string, in the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitrun/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the name
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Secret names
const (
	ConnectionString = constants.DefaultKeyringUser
	RedisAddr        = "redis-addr"
)

// Marker as a config value means the value is read from the keyring.
const Marker = "keyring"

func Get(name string) (string, error) {
	value, err := keyring.Get(constants.AppName, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

func Set(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if err := keyring.Set(constants.AppName, name, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", name, err)
	}
	return nil
}

func Delete(name string) error {
	if err := keyring.Delete(constants.AppName, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", name, err)
	}
	return nil
}

// GetConnectionString retrieves the database connection string from the OS keyring.
func GetConnectionString() (string, error) {
	return Get(ConnectionString)
}

// SetConnectionString stores the database connection string in the OS keyring.
func SetConnectionString(connStr string) error {
	return Set(ConnectionString, connStr)
}

// DeleteConnectionString removes the database connection string from the OS keyring.
func DeleteConnectionString() error {
	return Delete(ConnectionString)
}

// ResolveConnectionString prefers HABITRUN_DB_CONNECTION and falls back to
// the keyring. getenv is os.Getenv outside tests.
func ResolveConnectionString(getenv func(string) string) (string, error) {
	if v := strings.TrimSpace(getenv(constants.EnvDBConn)); v != "" {
		return v, nil
	}
	return GetConnectionString()
}

// ResolveRedisAddr returns addr unless it is Marker, in which case the
// address stored under RedisAddr is used.
func ResolveRedisAddr(addr string) (string, error) {
	if strings.TrimSpace(addr) != Marker {
		return addr, nil
	}
	return Get(RedisAddr)
}

// IsAvailable checks if the OS keyring is available on the current system.
// A missing probe entry still counts as available.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
