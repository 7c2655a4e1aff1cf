package router

import (
	"reflect"
	"sync"

	"github.com/relaywamp/wampcore/wamp"
)

func reflectValuePointer(f LifecycleCallback) uintptr {
	return reflect.ValueOf(f).Pointer()
}

// LifecycleEvent distinguishes realm creation from realm discard in a
// RealmManager callback.
type LifecycleEvent string

const (
	RealmCreated  LifecycleEvent = "create"
	RealmDiscarded LifecycleEvent = "discard"
)

// LifecycleCallback is invoked whenever the manager creates or discards a
// realm.  Callbacks must be safe to register or unregister from within
// another callback's invocation; RealmManager guarantees this by
// iterating over a snapshot of the callback list.
type LifecycleCallback func(event LifecycleEvent, realm wamp.URI)

// RealmManager lazily creates realms by name and discards them once
// their last session leaves, firing lifecycle callbacks on both
// transitions.
type RealmManager struct {
	mu        sync.Mutex
	realms    map[wamp.URI]*Realm
	callbacks []LifecycleCallback
	newRealm  func(wamp.URI) *Realm
}

// NewRealmManager creates an empty manager.  newRealm constructs a Realm
// for a name the manager has not seen before; callers normally pass
// NewRealm.
func NewRealmManager(newRealm func(wamp.URI) *Realm) *RealmManager {
	return &RealmManager{
		realms:   make(map[wamp.URI]*Realm),
		newRealm: newRealm,
	}
}

// GetRealm returns the realm with the given name, creating it (and
// firing the "create" callback) if this is the first reference to it.
func (m *RealmManager) GetRealm(name wamp.URI) *Realm {
	m.mu.Lock()
	realm, ok := m.realms[name]
	if !ok {
		realm = m.newRealm(name)
		m.realms[name] = realm
		m.mu.Unlock()
		m.fire(RealmCreated, name)
		return realm
	}
	m.mu.Unlock()
	return realm
}

// Lookup returns the realm with the given name without creating it.
func (m *RealmManager) Lookup(name wamp.URI) (*Realm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	realm, ok := m.realms[name]
	return realm, ok
}

// DiscardRealm removes the named realm and fires the "discard" callback,
// if the realm is currently known to the manager.  Called by a Realm
// itself once its last session leaves.
func (m *RealmManager) DiscardRealm(name wamp.URI) {
	m.mu.Lock()
	_, ok := m.realms[name]
	if ok {
		delete(m.realms, name)
	}
	m.mu.Unlock()
	if ok {
		m.fire(RealmDiscarded, name)
	}
}

// Realms returns a snapshot of the currently live realms.
func (m *RealmManager) Realms() []*Realm {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Realm, 0, len(m.realms))
	for _, r := range m.realms {
		out = append(out, r)
	}
	return out
}

// RegisterCallback adds f to the set of lifecycle callbacks.
func (m *RealmManager) RegisterCallback(f LifecycleCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(append([]LifecycleCallback{}, m.callbacks...), f)
}

// UnregisterCallback removes f, comparing by function pointer identity.
// It is a no-op if f was never registered.
func (m *RealmManager) UnregisterCallback(f LifecycleCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := reflectValuePointer(f)
	next := make([]LifecycleCallback, 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		if reflectValuePointer(cb) == target {
			continue
		}
		next = append(next, cb)
	}
	m.callbacks = next
}

func (m *RealmManager) fire(event LifecycleEvent, realm wamp.URI) {
	m.mu.Lock()
	snapshot := m.callbacks
	m.mu.Unlock()
	for _, cb := range snapshot {
		cb(event, realm)
	}
}
