package session

import (
	"math/rand/v2"

	"github.com/puzpuzpuz/xsync/v4"
)

// Registry keeps one Session per class.
type Registry struct {
	sessions *xsync.Map[string, *Session]
	newRand  func() *rand.Rand
}

// NewRegistry creates an empty registry. newRand supplies the generator for
// each new session; nil means grouping.NewRand.
func NewRegistry(newRand func() *rand.Rand) *Registry {
	return &Registry{
		sessions: xsync.NewMap[string, *Session](),
		newRand:  newRand,
	}
}

// Get returns the session of a class, creating it on first use.
func (r *Registry) Get(classID string) *Session {
	if s, ok := r.sessions.Load(classID); ok {
		return s
	}
	var rng *rand.Rand
	if r.newRand != nil {
		rng = r.newRand()
	}
	s, _ := r.sessions.LoadOrStore(classID, New(classID, rng))
	return s
}

// Lookup returns the session of a class without creating one.
func (r *Registry) Lookup(classID string) (*Session, bool) {
	return r.sessions.Load(classID)
}

// Drop forgets the session of a deleted class.
func (r *Registry) Drop(classID string) {
	r.sessions.Delete(classID)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	return r.sessions.Size()
}
