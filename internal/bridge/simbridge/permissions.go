package simbridge

import (
	"sync"

	"github.com/signalsfoundry/target-compass/internal/bridge"
)

// Permissions is an in-memory PermissionService. With AutoGrant set a
// request grants every requested permission, as if the user accepted the
// prompt.
type Permissions struct {
	mu        sync.Mutex
	granted   map[bridge.Permission]bool
	autoGrant bool
	requests  [][]bridge.Permission
}

// NewPermissions creates a store with the given permissions already granted.
func NewPermissions(autoGrant bool, granted ...bridge.Permission) *Permissions {
	p := &Permissions{granted: make(map[bridge.Permission]bool), autoGrant: autoGrant}
	for _, g := range granted {
		p.granted[g] = true
	}
	return p
}

// AllGranted returns a store with both location permissions granted.
func AllGranted() *Permissions {
	return NewPermissions(false, bridge.FineLocation, bridge.CoarseLocation)
}

func (p *Permissions) Granted(perm bridge.Permission) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted[perm]
}

func (p *Permissions) Request(perms ...bridge.Permission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, append([]bridge.Permission(nil), perms...))
	if p.autoGrant {
		for _, perm := range perms {
			p.granted[perm] = true
		}
	}
}

// Grant marks perms as granted.
func (p *Permissions) Grant(perms ...bridge.Permission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, perm := range perms {
		p.granted[perm] = true
	}
}

// Revoke withdraws perms.
func (p *Permissions) Revoke(perms ...bridge.Permission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, perm := range perms {
		delete(p.granted, perm)
	}
}

// Requests returns how many permission prompts were raised.
func (p *Permissions) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// LastRequest returns the permissions asked for by the most recent request.
func (p *Permissions) LastRequest() []bridge.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return append([]bridge.Permission(nil), p.requests[len(p.requests)-1]...)
}
