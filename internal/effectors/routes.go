package effectors

import "sync"

// Routes remembers where to deliver each user's notifications on transports
// whose user id is not itself an address (Discord users reply in a channel)
type Routes struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewRoutes creates an empty routing table
func NewRoutes() *Routes {
	return &Routes{m: make(map[string]string)}
}

// Set records the latest address seen for user
func (r *Routes) Set(user, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[user] = address
}

// Get returns the address for user
func (r *Routes) Get(user string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.m[user]
	return addr, ok
}
