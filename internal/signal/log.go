package signal

import "sync"

// Log is the append-only signal history for the process lifetime. Entries
// are never mutated or removed, and a symbol may appear once per cycle it
// qualifies, so the log grows monotonically. Readers receive a copied
// snapshot and never observe a cycle's writes in progress.
type Log struct {
	mu      sync.RWMutex
	entries []Signal
}

func NewLog() *Log {
	return &Log{}
}

// Append adds signals at the end of the log.
func (l *Log) Append(signals ...Signal) {
	if len(signals) == 0 {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, signals...)
	l.mu.Unlock()
}

// Snapshot returns a copy of the full log, oldest first. The result is
// non-nil so it serializes as an empty array rather than null.
func (l *Log) Snapshot() []Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Signal, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of signals recorded so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
