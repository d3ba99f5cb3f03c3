package instagram

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// stateStore ties CSRF state tokens to the owning account that initiated the
// login, so the callback knows which account the new connection belongs to.
type stateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	accountID string
	createdAt time.Time
}

const stateTTL = 10 * time.Minute

var states = &stateStore{states: make(map[string]stateEntry)}

// issueState creates a single-use state token bound to an owning account.
func issueState(accountID string) string {
	b := make([]byte, 16)
	rand.Read(b)
	state := hex.EncodeToString(b)

	states.mu.Lock()
	defer states.mu.Unlock()
	for s, entry := range states.states {
		if time.Since(entry.createdAt) > stateTTL {
			delete(states.states, s)
		}
	}
	states.states[state] = stateEntry{accountID: accountID, createdAt: time.Now()}
	return state
}

// consumeState validates and invalidates a state token, returning the bound
// account id.
func consumeState(state string) (string, bool) {
	states.mu.Lock()
	defer states.mu.Unlock()
	entry, ok := states.states[state]
	if !ok || time.Since(entry.createdAt) > stateTTL {
		return "", false
	}
	delete(states.states, state)
	return entry.accountID, true
}
