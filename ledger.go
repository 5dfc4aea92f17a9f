package foreman

import "sync"

// ledger is the runtime record of live access tokens: identity to current
// mode, checked on acquire and cleared on release.
type ledger struct {
	mu     sync.Mutex
	tokens map[Identity]*token
}

type token struct {
	readers int
	writer  bool
}

func (l *ledger) acquire(id Identity, mode Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens == nil {
		l.tokens = make(map[Identity]*token)
	}
	tok, ok := l.tokens[id]
	if !ok {
		tok = &token{}
		l.tokens[id] = tok
	}
	switch {
	case tok.writer:
		return AccessConflictError{ID: id, Held: Write, Requested: mode}
	case mode == Write && tok.readers > 0:
		return AccessConflictError{ID: id, Held: Read, Requested: mode}
	case mode == Write:
		tok.writer = true
	default:
		tok.readers++
	}
	return nil
}

// upgrade turns the caller's read token into a write token. It fails when any
// other reader shares the identity.
func (l *ledger) upgrade(id Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok := l.tokens[id]
	if tok == nil || tok.readers != 1 || tok.writer {
		return AccessConflictError{ID: id, Held: Read, Requested: Write}
	}
	tok.readers = 0
	tok.writer = true
	return nil
}

func (l *ledger) release(id Identity, mode Mode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok := l.tokens[id]
	if tok == nil {
		return
	}
	if mode == Write {
		tok.writer = false
	} else if tok.readers > 0 {
		tok.readers--
	}
	if !tok.writer && tok.readers == 0 {
		delete(l.tokens, id)
	}
}

// busy returns any identity with a live token.
func (l *ledger) busy() (Identity, Mode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, tok := range l.tokens {
		mode := Read
		if tok.writer {
			mode = Write
		}
		return id, mode, true
	}
	return Identity{}, Read, false
}
