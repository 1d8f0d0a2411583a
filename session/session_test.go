package session

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"classgroups-server-go/grouping"
	"classgroups-server-go/models"
)

func roster(names ...string) []models.Student {
	out := make([]models.Student, len(names))
	for i, n := range names {
		out[i] = models.Student{ID: fmt.Sprintf("S%d", i+1), Name: n, ClassID: "C1"}
	}
	return out
}

func ids(students []models.Student) []string {
	out := make([]string, len(students))
	for i, st := range students {
		out[i] = st.ID
	}
	return out
}

func newSession() *Session {
	return New("C1", rand.New(rand.NewPCG(11, 12)))
}

func TestFilterPresent(t *testing.T) {
	all := roster("A", "B", "C", "D")

	present := FilterPresent(all, map[string]struct{}{"S2": {}, "S9": {}})

	require.Equal(t, []string{"S1", "S3", "S4"}, ids(present))
	require.Equal(t, []string{"A", "C", "D"}, Names(present))
}

func TestSession_Attendance(t *testing.T) {
	s := newSession()

	require.True(t, s.ToggleAbsent("S2"))
	require.True(t, s.IsAbsent("S2"))
	require.False(t, s.ToggleAbsent("S2"))
	require.False(t, s.IsAbsent("S2"))

	s.SetAbsent("S3", true)
	s.SetAbsent("S1", true)
	require.Equal(t, []string{"S1", "S3"}, s.AbsentIDs())
	s.SetAbsent("S1", false)
	require.Equal(t, []string{"S3"}, s.AbsentIDs())
}

func TestSession_GenerateSkipsAbsent(t *testing.T) {
	s := newSession()
	all := roster("A", "B", "C", "D", "E", "F", "G")
	s.SetAbsent("S4", true)

	a, err := s.Generate(all, grouping.Options{GroupSize: 3, Strategy: grouping.AllowSmaller}, "")

	require.NoError(t, err)
	require.Equal(t, 6, a.Len())
	require.Len(t, a.Groups, 2)
	require.NotContains(t, ids(a.Members()), "S4")

	cur, opts, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, a, cur)
	require.Equal(t, 3, opts.GroupSize)
}

func TestSession_GenerateRejectsBadOptions(t *testing.T) {
	s := newSession()

	_, err := s.Generate(roster("A"), grouping.Options{GroupSize: 0, Strategy: grouping.Distribute}, "")

	require.ErrorIs(t, err, grouping.ErrInvalidGroupSize)
	_, _, ok := s.Current()
	require.False(t, ok)
}

func TestSession_Regenerate(t *testing.T) {
	s := newSession()
	all := roster("A", "B", "C", "D", "E")

	_, _, err := s.Regenerate(all, "")
	require.ErrorIs(t, err, ErrNoGroups)

	_, err = s.Generate(all, grouping.Options{GroupSize: 2, Strategy: grouping.Distribute}, "")
	require.NoError(t, err)

	a, opts, err := s.Regenerate(all, "")
	require.NoError(t, err)
	require.Len(t, a.Groups, 2)
	require.Equal(t, grouping.Options{GroupSize: 2, Strategy: grouping.Distribute}, opts)
	require.ElementsMatch(t, ids(all), ids(a.Members()))
}

func TestSession_SeedIsReproducible(t *testing.T) {
	all := roster("A", "B", "C", "D", "E", "F", "G", "H")
	opts := grouping.Options{GroupSize: 3, Strategy: grouping.Distribute}

	a, err := New("C1", nil).Generate(all, opts, "friday")
	require.NoError(t, err)
	b, err := New("C1", nil).Generate(all, opts, "friday")
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestSession_PickCoversEveryoneThenRestarts(t *testing.T) {
	s := newSession()
	_, ok := s.Pick()
	require.False(t, ok)
	require.Equal(t, grouping.Unseeded, s.PickerState())

	all := roster("A", "B", "C")
	_, err := s.Generate(all, grouping.Options{GroupSize: 2, Strategy: grouping.AllowSmaller}, "")
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		d, ok := s.Pick()
		require.True(t, ok)
		require.False(t, seen[d.Item.ID])
		seen[d.Item.ID] = true
		last, ok := s.LastPicked()
		require.True(t, ok)
		require.Equal(t, d.Item, last)
	}
	require.Len(t, seen, 3)
	require.Equal(t, grouping.Exhausted, s.PickerState())

	d, ok := s.Pick()
	require.True(t, ok)
	require.Equal(t, 2, d.Round)
	require.Contains(t, ids(all), d.Item.ID)
}

func TestSession_DuplicateNamesStayDistinct(t *testing.T) {
	s := newSession()
	all := roster("Sam", "Sam")
	_, err := s.Generate(all, grouping.Options{GroupSize: 2, Strategy: grouping.AllowSmaller}, "")
	require.NoError(t, err)

	first, _ := s.Pick()
	second, _ := s.Pick()

	require.NotEqual(t, first.Item.ID, second.Item.ID)
}

func TestSession_GenerateResetsPicker(t *testing.T) {
	s := newSession()
	all := roster("A", "B", "C", "D")
	opts := grouping.Options{GroupSize: 2, Strategy: grouping.AllowSmaller}
	_, err := s.Generate(all, opts, "")
	require.NoError(t, err)
	_, _ = s.Pick()

	_, err = s.Generate(all, opts, "")
	require.NoError(t, err)

	_, ok := s.LastPicked()
	require.False(t, ok)
	d, ok := s.Pick()
	require.True(t, ok)
	require.Equal(t, 3, d.Remaining)
	require.Equal(t, 1, d.Round)
}

func TestSession_Forget(t *testing.T) {
	s := newSession()
	all := roster("A", "B", "C")
	s.SetAbsent("S2", true)
	_, err := s.Generate(all, grouping.Options{GroupSize: 2, Strategy: grouping.Distribute}, "")
	require.NoError(t, err)

	s.Forget("S2")

	require.Empty(t, s.AbsentIDs())
	_, _, ok := s.Current()
	require.False(t, ok)
	_, ok = s.Pick()
	require.False(t, ok)

	_, _, err = s.Regenerate(all[:1], "")
	require.NoError(t, err)
}

func TestSession_ConcurrentPicks(t *testing.T) {
	s := newSession()
	all := roster("A", "B", "C", "D", "E", "F", "G", "H")
	_, err := s.Generate(all, grouping.Options{GroupSize: 4, Strategy: grouping.Distribute}, "")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < len(all); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, ok := s.Pick()
			if !ok {
				return
			}
			mu.Lock()
			seen[d.Item.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, len(all))
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
}

func TestFormatText(t *testing.T) {
	text := FormatText([][]string{{"Ana", "Ben"}, {"Cy"}})

	require.Equal(t, "Group 1:\nAna\nBen\n\nGroup 2:\nCy", text)
	require.Empty(t, FormatText(nil))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) })

	a := r.Get("C1")
	require.Same(t, a, r.Get("C1"))
	require.Equal(t, "C1", a.ClassID())
	require.Equal(t, 1, r.Len())

	_, ok := r.Lookup("C2")
	require.False(t, ok)

	r.Drop("C1")
	require.Zero(t, r.Len())
	require.NotSame(t, a, r.Get("C1"))
}
