package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"classgroups-server-go/grouping"
	"classgroups-server-go/models"
)

// ErrNoGroups is returned by Regenerate when no groups were generated yet.
var ErrNoGroups = errors.New("no groups generated yet")

// Session holds the grouping state of one class: who is absent, the current
// assignment and the picker drawing from it. Every user action maps to one
// method, and methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	classID    string
	rng        *rand.Rand
	absent     map[string]struct{}
	options    *grouping.Options
	assignment *grouping.Assignment[models.Student]
	picker     *grouping.Picker[models.Student]
	lastPicked *models.Student
}

// New creates an empty session. A nil rng falls back to grouping.NewRand.
func New(classID string, rng *rand.Rand) *Session {
	if rng == nil {
		rng = grouping.NewRand()
	}
	return &Session{
		classID: classID,
		rng:     rng,
		absent:  make(map[string]struct{}),
		picker:  grouping.NewPicker[models.Student](rng),
	}
}

// ClassID returns the class the session belongs to.
func (s *Session) ClassID() string {
	return s.classID
}

// ToggleAbsent flips the attendance of a student and reports whether the
// student is now absent.
func (s *Session) ToggleAbsent(studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.absent[studentID]; ok {
		delete(s.absent, studentID)
		return false
	}
	s.absent[studentID] = struct{}{}
	return true
}

// SetAbsent marks a student absent or present.
func (s *Session) SetAbsent(studentID string, absent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if absent {
		s.absent[studentID] = struct{}{}
		return
	}
	delete(s.absent, studentID)
}

// IsAbsent reports whether the student is marked absent.
func (s *Session) IsAbsent(studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.absent[studentID]
	return ok
}

// AbsentIDs returns the absent student IDs in sorted order.
func (s *Session) AbsentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.absent))
	for id := range s.absent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Generate groups the present students and makes the result current. The
// picker restarts on the new groups. A non-empty seed makes the grouping
// reproducible.
func (s *Session) Generate(students []models.Student, opts grouping.Options, seed string) (grouping.Assignment[models.Student], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.generate(students, opts, seed)
}

// Regenerate reshuffles the roster with the options of the last Generate and
// returns those options with the new groups.
func (s *Session) Regenerate(students []models.Student, seed string) (grouping.Assignment[models.Student], grouping.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.options == nil {
		return grouping.Assignment[models.Student]{}, grouping.Options{}, ErrNoGroups
	}
	opts := *s.options
	a, err := s.generate(students, opts, seed)
	return a, opts, err
}

func (s *Session) generate(students []models.Student, opts grouping.Options, seed string) (grouping.Assignment[models.Student], error) {
	rng := s.rng
	if seed != "" {
		rng = grouping.SeededRand(seed)
	}

	a, err := grouping.Partition(FilterPresent(students, s.absent), opts, rng)
	if err != nil {
		return grouping.Assignment[models.Student]{}, fmt.Errorf("failed to group class %s: %w", s.classID, err)
	}

	s.options = &opts
	s.assignment = &a
	s.picker.Reset(a)
	s.lastPicked = nil
	return a, nil
}

// Current returns the active assignment and the options that produced it.
func (s *Session) Current() (grouping.Assignment[models.Student], grouping.Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assignment == nil {
		return grouping.Assignment[models.Student]{}, grouping.Options{}, false
	}
	return *s.assignment, *s.options, true
}

// Options returns the options of the last successful generation, even after
// the groups were invalidated.
func (s *Session) Options() (grouping.Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.options == nil {
		return grouping.Options{}, false
	}
	return *s.options, true
}

// Pick draws the next student from the current groups. It returns false when
// there is nothing to pick.
func (s *Session) Pick() (grouping.Draw[models.Student], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.picker.Pick()
	if ok {
		picked := d.Item
		s.lastPicked = &picked
	}
	return d, ok
}

// LastPicked returns the most recently picked student since the last (re)generation.
func (s *Session) LastPicked() (models.Student, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastPicked == nil {
		return models.Student{}, false
	}
	return *s.lastPicked, true
}

// PickerState exposes where the picker is in its round.
func (s *Session) PickerState() grouping.PickerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.picker.State()
}

// Invalidate drops the current groups after the roster changed. The options
// are kept so Regenerate still works.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignment = nil
	s.picker.Clear()
	s.lastPicked = nil
}

// Forget removes every trace of a deleted student and invalidates the groups.
func (s *Session) Forget(studentID string) {
	s.mu.Lock()
	delete(s.absent, studentID)
	s.mu.Unlock()

	s.Invalidate()
}

// FilterPresent returns the students whose ID is not in absent, keeping order.
func FilterPresent(all []models.Student, absent map[string]struct{}) []models.Student {
	present := make([]models.Student, 0, len(all))
	for _, st := range all {
		if _, ok := absent[st.ID]; ok {
			continue
		}
		present = append(present, st)
	}
	return present
}

// Names maps students to their display names.
func Names(students []models.Student) []string {
	out := make([]string, len(students))
	for i, st := range students {
		out[i] = st.Name
	}
	return out
}

// GroupNames renders an assignment as display names.
func GroupNames(a grouping.Assignment[models.Student]) [][]string {
	out := make([][]string, len(a.Groups))
	for i, g := range a.Groups {
		out[i] = Names(g)
	}
	return out
}

// FormatText renders groups the way they are copied to the clipboard:
// "Group N:" followed by one name per line, groups separated by a blank line.
func FormatText(groups [][]string) string {
	blocks := make([]string, len(groups))
	for i, g := range groups {
		blocks[i] = fmt.Sprintf("Group %d:\n%s", i+1, strings.Join(g, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
