package grouping

import "math/rand/v2"

// PickerState describes where a Picker is in its draw cycle.
type PickerState int

const (
	// Unseeded means no assignment with members has been loaded.
	Unseeded PickerState = iota
	// Seeded means the current round still has students left to draw.
	Seeded
	// Exhausted means every student was drawn this round; the next Pick starts a new one.
	Exhausted
)

func (s PickerState) String() string {
	switch s {
	case Unseeded:
		return "unseeded"
	case Seeded:
		return "seeded"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Draw is the result of a successful Pick.
type Draw[T any] struct {
	Item T `json:"item"`
	// Remaining is how many students are still undrawn in this round.
	Remaining int `json:"remaining"`
	// Round counts rounds since the last Reset, starting at 1.
	Round int `json:"round"`
	// Total is the number of members in a full round.
	Total int `json:"total"`
}

// FirstOfRound reports whether this draw opened its round.
func (d Draw[T]) FirstOfRound() bool {
	return d.Remaining == d.Total-1
}

// Picker hands out the members of an Assignment one at a time in random
// order. Nobody is drawn twice until everyone has been drawn once; after that
// a new round over the same members begins.
//
// A Picker is not safe for concurrent use.
type Picker[T any] struct {
	rng     *rand.Rand
	members []T
	pool    []T
	round   int
}

// NewPicker creates an unseeded Picker. A nil rng falls back to NewRand.
func NewPicker[T any](rng *rand.Rand) *Picker[T] {
	if rng == nil {
		rng = NewRand()
	}
	return &Picker[T]{rng: rng}
}

// Reset loads a new assignment and abandons the round in progress.
func (p *Picker[T]) Reset(a Assignment[T]) {
	p.members = a.Members()
	p.pool = nil
	p.round = 0
	if len(p.members) > 0 {
		p.reseed()
	}
}

// Clear forgets the loaded assignment.
func (p *Picker[T]) Clear() {
	p.members = nil
	p.pool = nil
	p.round = 0
}

func (p *Picker[T]) reseed() {
	p.pool = make([]T, len(p.members))
	copy(p.pool, p.members)
	p.round++
}

// Pick draws one member uniformly among those not yet drawn this round.
// It returns false, leaving the state untouched, when nothing is loaded.
func (p *Picker[T]) Pick() (Draw[T], bool) {
	if len(p.members) == 0 {
		return Draw[T]{}, false
	}
	if len(p.pool) == 0 {
		p.reseed()
	}

	i := p.rng.IntN(len(p.pool))
	chosen := p.pool[i]
	last := len(p.pool) - 1
	p.pool[i] = p.pool[last]
	var zero T
	p.pool[last] = zero
	p.pool = p.pool[:last]

	return Draw[T]{Item: chosen, Remaining: len(p.pool), Round: p.round, Total: len(p.members)}, true
}

// State reports the current state.
func (p *Picker[T]) State() PickerState {
	switch {
	case len(p.members) == 0:
		return Unseeded
	case len(p.pool) == 0:
		return Exhausted
	}
	return Seeded
}

// Remaining returns the number of members still undrawn this round.
func (p *Picker[T]) Remaining() int {
	return len(p.pool)
}

// Round returns the current round number, 0 when unseeded.
func (p *Picker[T]) Round() int {
	return p.round
}
