// Package keyring stores account secrets in the OS keyring.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "weavesync"

var ErrNotFound = keyring.ErrNotFound

// Secrets are the two values a bootstrap needs beyond the account name.
type Secrets struct {
	Password string
	SyncKey  string
}

func passwordItem(account string) string { return account + "/password" }
func syncKeyItem(account string) string  { return account + "/sync-key" }

// Save stores both secrets for account.
func Save(account string, s Secrets) error {
	if err := keyring.Set(serviceName, passwordItem(account), s.Password); err != nil {
		return fmt.Errorf("saving password: %w", err)
	}
	if err := keyring.Set(serviceName, syncKeyItem(account), s.SyncKey); err != nil {
		return fmt.Errorf("saving sync key: %w", err)
	}
	return nil
}

// Load returns the stored secrets for account. A secret that was never
// stored is left empty; ErrNotFound is returned only when both are absent.
func Load(account string) (Secrets, error) {
	var s Secrets
	var err error
	var missing int

	s.Password, err = keyring.Get(serviceName, passwordItem(account))
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		missing++
	case err != nil:
		return Secrets{}, fmt.Errorf("loading password: %w", err)
	}

	s.SyncKey, err = keyring.Get(serviceName, syncKeyItem(account))
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		missing++
	case err != nil:
		return Secrets{}, fmt.Errorf("loading sync key: %w", err)
	}

	if missing == 2 {
		return Secrets{}, ErrNotFound
	}
	return s, nil
}

// Delete removes both secrets for account. Missing entries are ignored.
func Delete(account string) error {
	for _, item := range []string{passwordItem(account), syncKeyItem(account)} {
		if err := keyring.Delete(serviceName, item); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("deleting %s: %w", item, err)
		}
	}
	return nil
}

// Has reports whether any secret is stored for account.
func Has(account string) bool {
	_, err := Load(account)
	return err == nil
}
