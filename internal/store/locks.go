package store

import "sync"

// AccountLocks hands out one mutex per account id. Accounts never contend with each other.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	sync.Mutex
	refs int
}

// NewAccountLocks creates an empty lock table.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*accountLock)}
}

// Lock blocks until the account is free and returns the matching unlock func.
// Entries are dropped once no goroutine holds or waits on them.
func (l *AccountLocks) Lock(accountID string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[accountID]
	if !ok {
		lock = &accountLock{}
		l.locks[accountID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, accountID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many accounts currently have a lock entry.
func (l *AccountLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
