package turnsignal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileForm struct {
	ID   int
	Name string
}

func TestLinkedOverride(t *testing.T) {
	t.Run("override then reset on upstream change", func(t *testing.T) {
		rctx := &ReactiveContext{}
		userID := Signal(rctx, 1)
		form := Linked(rctx, func() profileForm {
			return profileForm{ID: userID.Value()}
		})

		form.Update(func(f profileForm) profileForm {
			f.Name = "Alice"
			return f
		})
		assert.Equal(t, "Alice", form.Value().Name)
		assert.Equal(t, 1, form.Value().ID)

		userID.Set(2)
		got := form.Value()
		assert.Equal(t, 2, got.ID)
		assert.Equal(t, "", got.Name, "override discarded on upstream change")
	})

	t.Run("override survives unrelated reads", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 10)
		doubled := Linked(rctx, func() int { return base.Value() * 2 })

		doubled.Set(99)
		assert.Equal(t, 99, doubled.Value())
		assert.Equal(t, 99, doubled.Value())

		base.Set(11)
		assert.Equal(t, 22, doubled.Value())
	})

	t.Run("override survives an upstream change made before the write", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 10)
		doubled := Linked(rctx, func() int { return base.Value() * 2 })

		base.Set(11)
		doubled.Set(99)
		assert.Equal(t, 99, doubled.Value(),
			"only dependency changes after the write may discard the override")

		base.Set(12)
		assert.Equal(t, 24, doubled.Value())
	})

	t.Run("update applies to the fresh derivation while inactive", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 10)
		doubled := Linked(rctx, func() int { return base.Value() * 2 })

		base.Set(11)
		doubled.Update(func(v int) int { return v + 1 })
		assert.Equal(t, 23, doubled.Value(), "fn sees the re-derived 22, not the stale cache")
	})

	t.Run("equal direct writes are no-ops", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 1)
		linked := Linked(rctx, func() int { return base.Value() })

		calls := 0
		linked.Subscribe(func(int) { calls++ })
		assert.Equal(t, 1, calls)

		linked.Set(1)
		assert.Equal(t, 1, calls)
		linked.Set(5)
		assert.Equal(t, 2, calls)
		linked.Set(5)
		assert.Equal(t, 2, calls)
	})

	t.Run("active override overwritten by dependency change", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 1)
		linked := Linked(rctx, func() int { return base.Value() * 10 })

		var seen []int
		linked.Subscribe(func(v int) { seen = append(seen, v) })
		assert.Equal(t, []int{10}, seen)

		linked.Set(7)
		assert.Equal(t, 7, linked.Value())
		assert.Equal(t, []int{10, 7}, seen)

		base.Set(2)
		assert.Equal(t, 20, linked.Value())
		assert.Equal(t, []int{10, 7, 20}, seen)
	})

	t.Run("listener sees committed value", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 1)
		linked := Linked(rctx, func() int { return base.Value() * 10 })

		linked.Subscribe(func(v int) {
			assert.Equal(t, v, linked.Value())
		})
		base.Set(2)
		linked.Set(77)
	})

	t.Run("activation reseeds from the computation", func(t *testing.T) {
		rctx := &ReactiveContext{}
		base := Signal(rctx, 3)
		linked := Linked(rctx, func() int { return base.Value() })

		linked.Set(42)
		var seen []int
		linked.Subscribe(func(v int) { seen = append(seen, v) })
		assert.Equal(t, []int{3}, seen, "subscribe reseeds and drops the pending override")
	})
}

func TestLinkedFrom(t *testing.T) {
	t.Run("source form derives and resets", func(t *testing.T) {
		rctx := &ReactiveContext{}
		userID := Signal(rctx, 1)

		form, err := LinkedFrom(rctx, LinkedOptions[int, profileForm]{
			Source: userID,
			Compute: func(id int, _ *LinkedPrevious[int, profileForm]) profileForm {
				return profileForm{ID: id}
			},
		})
		require.NoError(t, err)

		form.Update(func(f profileForm) profileForm {
			f.Name = "Bob"
			return f
		})
		assert.Equal(t, profileForm{ID: 1, Name: "Bob"}, form.Value())

		userID.Set(2)
		assert.Equal(t, profileForm{ID: 2}, form.Value())
	})

	t.Run("previous carries the cached linked value", func(t *testing.T) {
		rctx := &ReactiveContext{}
		src := Signal(rctx, 1)

		var previousSeen []*LinkedPrevious[int, int]
		linked, err := LinkedFrom(rctx, LinkedOptions[int, int]{
			Source: src,
			Compute: func(v int, prev *LinkedPrevious[int, int]) int {
				previousSeen = append(previousSeen, prev)
				return v * 100
			},
		})
		require.NoError(t, err)
		require.Len(t, previousSeen, 1)
		assert.Nil(t, previousSeen[0], "first derivation has no previous")

		linked.Subscribe(func(int) {})
		src.Set(2)
		last := previousSeen[len(previousSeen)-1]
		require.NotNil(t, last)
		assert.Equal(t, 2, last.Source, "previous carries the source value that fired")
		assert.Equal(t, 100, last.Value, "previous carries the linked value being replaced")
		assert.Equal(t, 200, linked.Value())
	})

	t.Run("custom equality", func(t *testing.T) {
		rctx := &ReactiveContext{}
		src := Signal(rctx, 0)

		linked, err := LinkedFrom(rctx, LinkedOptions[int, int]{
			Source:  src,
			Compute: func(v int, _ *LinkedPrevious[int, int]) int { return v },
			Equal:   func(a, b int) bool { return a%10 == b%10 },
		})
		require.NoError(t, err)

		var seen []int
		linked.Subscribe(func(v int) { seen = append(seen, v) })
		assert.Equal(t, []int{0}, seen)

		src.Set(20) // same bucket as cached 0
		assert.Equal(t, []int{0}, seen)
		src.Set(3)
		assert.Equal(t, []int{0, 3}, seen)
	})

	t.Run("computed signal as source", func(t *testing.T) {
		rctx := &ReactiveContext{}
		a := Signal(rctx, 2)
		square := Computed(rctx, func() int { return a.Value() * a.Value() })

		linked, err := LinkedFrom(rctx, LinkedOptions[int, string]{
			Source: square,
			Compute: func(v int, _ *LinkedPrevious[int, string]) string {
				if v > 10 {
					return "big"
				}
				return "small"
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "small", linked.Value())

		var seen []string
		linked.Subscribe(func(v string) { seen = append(seen, v) })
		a.Set(5)
		assert.Equal(t, []string{"small", "big"}, seen)
	})

	t.Run("malformed options error", func(t *testing.T) {
		rctx := &ReactiveContext{}
		src := Signal(rctx, 1)

		_, err := LinkedFrom(rctx, LinkedOptions[int, int]{Compute: func(int, *LinkedPrevious[int, int]) int { return 0 }})
		require.ErrorContains(t, err, "nil source")

		_, err = LinkedFrom(rctx, LinkedOptions[int, int]{Source: src})
		require.ErrorContains(t, err, "nil computation")
	})
}
