package idempotency

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// Ledger deduplicates inbound webhook deliveries. Telephony providers re-POST
// on slow responses; a delivery key recorded inside its TTL window means the
// turn already committed and must not run again. Keys are namespaced
// "source:external_id" by the caller.
type Ledger struct {
	path  string
	state deliveries
	mu    sync.RWMutex
}

type delivery struct {
	Expiry  int64           `json:"expiry"` // unix seconds
	Payload json.RawMessage `json:"payload,omitempty"`
}

type deliveries struct {
	Keys map[string]delivery `json:"keys"`
}

func NewLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path:  path,
		state: deliveries{Keys: make(map[string]delivery)},
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		if dir := filepath.Dir(l.path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		return l.save()
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &l.state)
}

func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.state, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(l.path, bytes.NewReader(data))
}

// Save persists the ledger.
func (l *Ledger) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

// Lookup reports whether the delivery key was recorded inside its TTL and
// returns the response payload cached alongside it. An expired key is dropped
// and reads as unseen.
func (l *Ledger) Lookup(key string) (json.RawMessage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, exists := l.state.Keys[key]
	if !exists {
		return nil, false
	}
	if d.Expiry <= time.Now().Unix() {
		delete(l.state.Keys, key)
		return nil, false
	}
	return d.Payload, true
}

// Record marks a delivery key as processed and caches the response payload so
// an upstream re-POST gets the original answer back. Callers record only
// after the turn committed; a failed turn stays unrecorded so the provider's
// retry can run it.
func (l *Ledger) Record(key string, ttl time.Duration, payload json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Keys[key] = delivery{
		Expiry:  time.Now().Unix() + int64(ttl.Seconds()),
		Payload: payload,
	}
}

// Prune drops expired keys and returns how many were removed.
func (l *Ledger) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().Unix()
	count := 0
	for k, d := range l.state.Keys {
		if d.Expiry < now {
			delete(l.state.Keys, k)
			count++
		}
	}
	return count
}
