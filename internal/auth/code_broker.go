package auth

import (
	"context"
	"sync"
	"time"
)

// ErrCodeNotFound indicates the exchange code is unknown, expired, or already used.
var ErrCodeNotFound = ErrSessionNotFound

// CodeBroker issues short-lived one-time exchange codes. Sign-up hands the
// code to the verification link; the auth callback exchanges it for a
// session. Codes are ephemeral and deliberately not persisted.
type CodeBroker struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	codes map[string]pendingCode
}

type pendingCode struct {
	userID  string
	expires time.Time
}

// NewCodeBroker constructs a broker issuing codes valid for the provided TTL.
func NewCodeBroker(ttl time.Duration) *CodeBroker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CodeBroker{
		ttl:   ttl,
		now:   time.Now,
		codes: make(map[string]pendingCode),
	}
}

// Issue mints a one-time code bound to the provided user id.
func (b *CodeBroker) Issue(_ context.Context, userID string) (string, error) {
	code, err := randomToken()
	if err != nil {
		return "", err
	}

	now := b.now().UTC()

	b.mu.Lock()
	b.gcLocked(now)
	b.codes[code] = pendingCode{userID: userID, expires: now.Add(b.ttl)}
	b.mu.Unlock()

	return code, nil
}

// Exchange consumes a code and returns the bound user id. A code can be
// exchanged at most once.
func (b *CodeBroker) Exchange(_ context.Context, code string) (string, error) {
	if code == "" {
		return "", ErrCodeNotFound
	}

	now := b.now().UTC()

	b.mu.Lock()
	pending, ok := b.codes[code]
	if ok {
		delete(b.codes, code)
	}
	b.mu.Unlock()

	if !ok || now.After(pending.expires) {
		return "", ErrCodeNotFound
	}

	return pending.userID, nil
}

func (b *CodeBroker) gcLocked(now time.Time) {
	for code, pending := range b.codes {
		if now.After(pending.expires) {
			delete(b.codes, code)
		}
	}
}
