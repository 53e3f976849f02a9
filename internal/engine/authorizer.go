package engine

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Authorizer decides whether caller may act on resource. The engine never
// calls it; the dispatch layer does before invoking an operation.
type Authorizer interface {
	Verify(caller, resource common.Address) bool
}

// AllowAll authorizes every non-zero caller.
type AllowAll struct{}

func (AllowAll) Verify(caller, _ common.Address) bool {
	return caller != (common.Address{})
}

// AllowList authorizes callers registered globally or for one resource.
type AllowList struct {
	mu         sync.RWMutex
	global     map[common.Address]struct{}
	byResource map[common.Address]map[common.Address]struct{}
}

func NewAllowList(callers ...common.Address) *AllowList {
	l := &AllowList{
		global:     make(map[common.Address]struct{}, len(callers)),
		byResource: make(map[common.Address]map[common.Address]struct{}),
	}
	for _, c := range callers {
		l.global[c] = struct{}{}
	}
	return l
}

// Allow lets caller act on any resource.
func (l *AllowList) Allow(caller common.Address) {
	l.mu.Lock()
	l.global[caller] = struct{}{}
	l.mu.Unlock()
}

// AllowResource lets caller act on resource only.
func (l *AllowList) AllowResource(caller, resource common.Address) {
	l.mu.Lock()
	set, ok := l.byResource[resource]
	if !ok {
		set = make(map[common.Address]struct{})
		l.byResource[resource] = set
	}
	set[caller] = struct{}{}
	l.mu.Unlock()
}

func (l *AllowList) Verify(caller, resource common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.global[caller]; ok {
		return true
	}
	_, ok := l.byResource[resource][caller]
	return ok
}
