package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/multibroker/oms/internal/account"
)

// Registry holds the configured accounts. The account list is append-only
// after startup; the only mutable piece is the disabled set, which every
// concurrent dispatch reads, so it sits behind a mutex and is only exposed
// through Enable/Disable/IsDisabled.
type Registry struct {
	accounts []*account.Account
	byID     map[string]*account.Account

	mu       sync.RWMutex
	disabled map[string]struct{}
}

func New(accounts []*account.Account) *Registry {
	byID := make(map[string]*account.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ClientID()] = a
	}
	return &Registry{
		accounts: accounts,
		byID:     byID,
		disabled: make(map[string]struct{}),
	}
}

// Accounts returns the full account list in configuration order, disabled
// ones included. Eligibility filtering is the dispatcher's job.
func (r *Registry) Accounts() []*account.Account {
	out := make([]*account.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

func (r *Registry) Lookup(clientID string) (*account.Account, bool) {
	a, ok := r.byID[strings.ToUpper(clientID)]
	return a, ok
}

func (r *Registry) ClientIDs() []string {
	ids := make([]string, 0, len(r.accounts))
	for _, a := range r.accounts {
		ids = append(ids, a.ClientID())
	}
	return ids
}

// Disable blocks new order placement for the account. Modification and
// cancellation of existing orders stay allowed: a disabled account may still
// need to unwind risk. Unknown ids are ignored. Returns the disabled set.
func (r *Registry) Disable(clientID string) []string {
	clientID = strings.ToUpper(clientID)

	r.mu.Lock()
	if _, ok := r.byID[clientID]; ok {
		r.disabled[clientID] = struct{}{}
	}
	r.mu.Unlock()

	return r.Disabled()
}

// Enable lifts a previous Disable. Returns the enabled set.
func (r *Registry) Enable(clientID string) []string {
	clientID = strings.ToUpper(clientID)

	r.mu.Lock()
	delete(r.disabled, clientID)
	r.mu.Unlock()

	return r.Enabled()
}

func (r *Registry) IsDisabled(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.disabled[strings.ToUpper(clientID)]
	return ok
}

func (r *Registry) Disabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.disabled))
	for id := range r.disabled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.accounts))
	for _, a := range r.accounts {
		if _, ok := r.disabled[a.ClientID()]; !ok {
			ids = append(ids, a.ClientID())
		}
	}
	return ids
}
