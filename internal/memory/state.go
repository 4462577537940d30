package memory

// ContextState is an immutable snapshot of the context store. All mutation
// goes through ApplyDelta, which returns a fresh snapshot; holders of an
// old state never observe changes.
type ContextState struct {
	bullets []Bullet
	version int
}

// NewState returns the empty store at version zero.
func NewState() *ContextState {
	return &ContextState{}
}

// Restore rebuilds a snapshot from persisted bullets and version.
// The slice is copied; the caller keeps ownership of its argument.
func Restore(bullets []Bullet, version int) *ContextState {
	cp := make([]Bullet, len(bullets))
	copy(cp, bullets)
	return &ContextState{bullets: cp, version: version}
}

// Version is the number of deltas applied since the empty store.
func (s *ContextState) Version() int {
	return s.version
}

// Len is the number of bullets in the snapshot.
func (s *ContextState) Len() int {
	return len(s.bullets)
}

// Bullets returns a copy of the bullet slice in insertion order.
func (s *ContextState) Bullets() []Bullet {
	cp := make([]Bullet, len(s.bullets))
	copy(cp, s.bullets)
	return cp
}

// Lookup finds a bullet by ID.
func (s *ContextState) Lookup(id string) (Bullet, bool) {
	for _, b := range s.bullets {
		if b.ID == id {
			return b, true
		}
	}
	return Bullet{}, false
}

// Contains reports whether a bullet with the given ID exists.
func (s *ContextState) Contains(id string) bool {
	_, ok := s.Lookup(id)
	return ok
}
