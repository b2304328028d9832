package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyRegistry       = errors.New("account registry is empty")
	ErrRegistryMismatch    = errors.New("account ids and names differ in length")
	ErrDuplicateAccount    = errors.New("duplicate account id")
	ErrRegistryUnavailable = errors.New("account registry unavailable")
	ErrNoAccountsResolved  = errors.New("no requested account is configured")
)

// Account is a configured account id paired with its display name.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry is the ordered id -> name mapping loaded at startup.
// It is never mutated after NewRegistry returns.
type Registry struct {
	accounts []Account
	index    map[string]int
}

func NewRegistry(ids, names []string) (*Registry, error) {
	if len(ids) != len(names) {
		return nil, fmt.Errorf("%w: %d ids, %d names", ErrRegistryMismatch, len(ids), len(names))
	}
	if len(ids) == 0 {
		return nil, ErrEmptyRegistry
	}

	reg := &Registry{
		accounts: make([]Account, 0, len(ids)),
		index:    make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		if _, dup := reg.index[id]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAccount, id)
		}
		reg.index[id] = len(reg.accounts)
		reg.accounts = append(reg.accounts, Account{ID: id, Name: names[i]})
	}
	return reg, nil
}

// Lookup returns the account configured under id.
func (r *Registry) Lookup(id string) (Account, bool) {
	i, ok := r.index[id]
	if !ok {
		return Account{}, false
	}
	return r.accounts[i], true
}

func (r *Registry) Len() int {
	return len(r.accounts)
}

// Accounts returns a copy of the configured accounts in configuration order.
func (r *Registry) Accounts() []Account {
	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}
