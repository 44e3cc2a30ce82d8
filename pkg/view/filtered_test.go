package view

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/console/pkg/errors"
	"github.com/ajitpratap0/console/pkg/models"
	"github.com/ajitpratap0/console/pkg/testutil"
)

func numbered(ids ...int) []*models.Record {
	out := make([]*models.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewRecord(strconv.Itoa(id), map[string]interface{}{"n": id}))
	}
	return out
}

func evenID(r *models.Record) bool {
	n, _ := r.Get("n").(int)
	return n%2 == 0
}

// assertConsistent checks the mapping invariants against the source.
func assertConsistent(t *testing.T, v *FilteredView, source models.List, pred Predicate) {
	t.Helper()
	mapping := v.Mapping()
	require.Equal(t, len(mapping), v.Len())
	seen := make(map[string]bool)
	for i, srcIdx := range mapping {
		if i > 0 {
			require.Less(t, mapping[i-1], srcIdx, "mapping must be strictly increasing")
		}
		require.Same(t, source.At(srcIdx), v.At(i))
		require.True(t, pred(v.At(i)))
		require.False(t, seen[v.At(i).ID()], "duplicate id in view")
		seen[v.At(i).ID()] = true
	}
	// Every passing source record is visible.
	for i := 0; i < source.Len(); i++ {
		if pred(source.At(i)) {
			require.True(t, seen[source.At(i).ID()], "record %s missing from view", source.At(i).ID())
		}
	}
}

func TestNew_NilSource(t *testing.T) {
	v, err := New(nil)
	assert.Nil(t, v)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestNew_DefaultPassAll(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3)...)

	v, err := New(c, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, testutil.IDs(v))
	assert.Equal(t, []int{0, 1, 2}, v.Mapping())
}

func TestOnAdd_EvenSubsequence(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3, 4)...)
	v, err := New(c, WithPredicate(evenID), WithName("even"))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	require.NoError(t, c.AddAt(4, models.NewRecord("6", map[string]interface{}{"n": 6})))

	assert.Equal(t, []string{"2", "4", "6"}, testutil.IDs(v))
	assert.Equal(t, []int{1, 3, 4}, v.Mapping())
	require.Len(t, events.Events, 1)
	assert.Equal(t, models.EventAdd, events.Events[0].Kind)
	assert.Equal(t, 2, events.Events[0].Index)
	assertConsistent(t, v, c, evenID)
}

func TestOnAdd_MiddleInsertShiftsMapping(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(2, 4, 6)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)

	// An odd record in front moves every source index but is not visible.
	require.NoError(t, c.AddAt(0, models.NewRecord("1", map[string]interface{}{"n": 1})))
	assert.Equal(t, []int{1, 2, 3}, v.Mapping())

	require.NoError(t, c.AddAt(2, models.NewRecord("8", map[string]interface{}{"n": 8})))
	assert.Equal(t, []string{"2", "8", "4", "6"}, testutil.IDs(v))
	assertConsistent(t, v, c, evenID)
}

func TestOnRemove_NotVisibleEmitsNothing(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3, 4)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	c.Remove("3")

	assert.Empty(t, events.Events)
	assert.Equal(t, []int{1, 2}, v.Mapping())
	assertConsistent(t, v, c, evenID)
}

func TestOnRemove_Visible(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3, 4)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	c.Remove("2")

	require.Len(t, events.Events, 1)
	assert.Equal(t, models.EventRemove, events.Events[0].Kind)
	assert.Equal(t, 0, events.Events[0].Index)
	assert.Equal(t, "2", events.Events[0].Record.ID())
	assert.Equal(t, []string{"4"}, testutil.IDs(v))
	assertConsistent(t, v, c, evenID)
}

func TestSetPredicate_Idempotent(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3, 4, 5)...)
	v, err := New(c)
	require.NoError(t, err)
	events := testutil.Record(t, v)

	v.SetPredicate(evenID)
	assert.Equal(t, []models.EventKind{
		models.EventRemove, models.EventRemove, models.EventRemove, models.EventFilterComplete,
	}, events.Kinds())
	assert.Equal(t, 3, events.Count(models.EventRemove))

	events.Reset()
	v.SetPredicate(evenID)
	assert.Equal(t, []models.EventKind{models.EventFilterComplete}, events.Kinds())
	assertConsistent(t, v, c, evenID)
}

func TestSetPredicate_NilRestoresPassAll(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	v.SetPredicate(nil)

	assert.Equal(t, []string{"1", "2", "3"}, testutil.IDs(v))
	require.Len(t, events.Events, 3)
	assert.Equal(t, 0, events.Events[0].Index, "record 1 lands before 2")
	assert.Equal(t, 2, events.Events[1].Index, "record 3 lands after 2")
	assert.Equal(t, models.EventFilterComplete, events.Events[2].Kind)
}

func TestOnReset(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	c.Reset(numbered(4, 5, 6))

	assert.Equal(t, []string{"4", "6"}, testutil.IDs(v))
	assert.Equal(t, []models.EventKind{models.EventReset}, events.Kinds())
	assertConsistent(t, v, c, evenID)
}

func TestOnSort_KeepsMembership(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3, 4, 6)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	c.Sort(func(a, b *models.Record) bool {
		return a.Get("n").(int) > b.Get("n").(int)
	})

	assert.Equal(t, []string{"6", "4", "2"}, testutil.IDs(v))
	assert.Equal(t, []models.EventKind{models.EventSort}, events.Kinds())
	assertConsistent(t, v, c, evenID)
}

func TestOnChange(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3)...)
	v, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	events := testutil.Record(t, v)

	c.Get("3").Set("n", 30)
	c.Get("2").Set("n", 21)
	c.Get("3").Set("n", 32)

	require.Equal(t, []models.EventKind{models.EventAdd, models.EventRemove, models.EventChange}, events.Kinds())
	assert.Equal(t, "3", events.Events[0].Record.ID())
	assert.Equal(t, 1, events.Events[0].Index)
	assert.Equal(t, "2", events.Events[1].Record.ID())
	assert.Equal(t, "n", events.Events[2].Key)
	assert.Equal(t, []string{"3"}, testutil.IDs(v))
	assertConsistent(t, v, c, evenID)
}

func TestDirectMutationRejected(t *testing.T) {
	c := models.NewCollection("machines")
	v, err := New(c)
	require.NoError(t, err)

	for _, err := range []error{
		v.Add(models.NewRecord("x", nil)),
		v.Remove("x"),
		v.Reset(nil),
	} {
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidOperation))
	}
	assert.Equal(t, 0, v.Len())
}

func TestClose_StopsFollowing(t *testing.T) {
	c := models.NewCollection("machines")
	v, err := New(c)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ListenerCount())

	v.Close()
	v.Close()
	c.Add(numbered(1)...)

	assert.Equal(t, 0, c.ListenerCount())
	assert.Equal(t, 0, v.Len())
}

func TestStackedViews(t *testing.T) {
	c := models.NewCollection("machines")
	c.Add(numbered(1, 2, 3, 4, 5, 6, 8, 12)...)
	even, err := New(c, WithPredicate(evenID))
	require.NoError(t, err)
	big := func(r *models.Record) bool { return r.Get("n").(int) > 4 }
	bigEven, err := New(even, WithPredicate(big))
	require.NoError(t, err)

	assert.Equal(t, []string{"6", "8", "12"}, testutil.IDs(bigEven))

	c.Remove("8")
	c.Add(numbered(10)...)
	c.Get("6").Set("n", 7)

	assert.Equal(t, []string{"12", "10"}, testutil.IDs(bigEven))
	assertConsistent(t, bigEven, even, big)
}

func TestRandomEventSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := models.NewCollection("machines")
	v, err := New(c, WithPredicate(evenID), WithName("fuzz"))
	require.NoError(t, err)
	next := 0

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(6); {
		case op <= 1:
			next++
			r := models.NewRecord(fmt.Sprintf("r%d", next), map[string]interface{}{"n": rng.Intn(100)})
			require.NoError(t, c.AddAt(rng.Intn(c.Len()+1), r))
		case op == 2 && c.Len() > 0:
			c.Remove(c.At(rng.Intn(c.Len())).ID())
		case op == 3 && c.Len() > 0:
			c.At(rng.Intn(c.Len())).Set("n", rng.Intn(100))
		case op == 4:
			c.Sort(func(a, b *models.Record) bool { return a.Get("n").(int) < b.Get("n").(int) })
		case op == 5 && rng.Intn(10) == 0:
			c.Reset(c.Records()[:c.Len()/2])
		}
		assertConsistent(t, v, c, evenID)
	}
}
