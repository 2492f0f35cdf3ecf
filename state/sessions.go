package state

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/stableminer/stableminer/erg"
)

const (
	DefaultSessionIdle = 12 * time.Hour
	BalanceCacheTTL    = 30 * time.Second
)

// Session is a connected node wallet.
type Session struct {
	ID        string
	Endpoint  string
	APIKey    string
	Network   string
	Addresses []string
	Node      *erg.ErgNode
	Connected time.Time
}

// Address is the wallet's primary address, the first one the node reports.
func (s Session) Address() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	return s.Addresses[0]
}

// Sessions owns every connected wallet and the short lived explorer balance
// cache. Sessions expire after being idle.
type Sessions struct {
	store    *cache.Cache
	balances *cache.Cache
	idle     time.Duration
	mu       sync.Mutex
}

func NewSessions(idle time.Duration) *Sessions {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Sessions{
		store:    cache.New(idle, 10*time.Minute),
		balances: cache.New(BalanceCacheTTL, time.Minute),
		idle:     idle,
	}
}

// Create stores a new session under a fresh id.
func (s *Sessions) Create(sess Session) Session {
	sess.ID = uuid.NewString()
	if sess.Connected.IsZero() {
		sess.Connected = time.Now()
	}
	s.store.SetDefault(sess.ID, sess)
	return sess
}

// Get returns the session and extends its idle deadline.
func (s *Sessions) Get(id string) (Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.store.Get(id)
	if !ok {
		return Session{}, false
	}
	sess := v.(Session)
	s.store.SetDefault(id, sess)
	return sess, true
}

// SetAddresses replaces the wallet addresses of a session. When the primary
// address changes the cached balance is dropped. It reports whether the
// primary address changed.
func (s *Sessions) SetAddresses(id string, addresses []string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.store.Get(id)
	if !ok {
		return Session{}, false
	}
	sess := v.(Session)
	previous := sess.Address()
	sess.Addresses = append([]string(nil), addresses...)
	s.store.SetDefault(id, sess)

	changed := previous != sess.Address()
	if changed {
		s.balances.Delete(id)
	}
	return sess, changed
}

// Delete removes a session and its cached balance.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.store.Get(id)
	s.store.Delete(id)
	s.balances.Delete(id)
	return ok
}

func (s *Sessions) Count() int {
	return s.store.ItemCount()
}

type cachedBalance struct {
	address string
	balance erg.Balance
}

// Balance returns the cached explorer balance of the session's address.
func (s *Sessions) Balance(id, address string) (erg.Balance, bool) {
	v, ok := s.balances.Get(id)
	if !ok {
		return erg.Balance{}, false
	}
	c := v.(cachedBalance)
	if c.address != address {
		return erg.Balance{}, false
	}
	return c.balance, true
}

func (s *Sessions) StoreBalance(id, address string, balance erg.Balance) {
	s.balances.SetDefault(id, cachedBalance{address: address, balance: balance})
}
