package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/part"
)

// runRepositoryContract exercises the behavior every Repository backend shares.
func runRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	seq := 0
	newBatch := func(profile, action string) (*part.Part, *part.Event) {
		seq++
		p := part.New(base.Add(time.Duration(seq) * time.Second))
		e := part.NewEvent(p.ID, action, profile, part.CompleteWildberriesFbs)
		return p, e
	}

	t.Run("create and load", func(t *testing.T) {
		p, e := newBatch("profile-a", "sew")
		e.AddProduct(part.SKU{Product: "b"}, 1)
		e.AddProduct(part.SKU{Product: "a"}, 2)
		require.NoError(t, repo.Create(ctx, p, e))
		assert.Equal(t, e.ID, p.EventID)

		got, err := repo.Part(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.EventID)
		assert.Equal(t, p.Number, got.Number)

		current, err := repo.CurrentEvent(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, current.ID)
		assert.Equal(t, part.StatusOpen, current.Status)

		products, err := repo.Products(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "b", products[0].SKU.Product)
		assert.Equal(t, "a", products[1].SKU.Product)
	})

	t.Run("save repoints current event", func(t *testing.T) {
		p, e := newBatch("profile-b", "sew")
		e.AddProduct(part.SKU{Product: "a"}, 3)
		require.NoError(t, repo.Create(ctx, p, e))

		open, err := repo.FindOpen(ctx, "profile-b", "sew")
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, p.ID, open.Part.ID)

		next := e.Clone()
		require.NoError(t, next.Transition(part.StatusPackage))
		next.AssignWorking(&part.Working{Stage: "cut", Profile: "w1"})
		require.NoError(t, repo.Save(ctx, next))

		current, err := repo.CurrentEvent(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, next.ID, current.ID)
		assert.Equal(t, part.StatusPackage, current.Status)
		require.NotNil(t, current.Working)
		assert.Equal(t, "w1", current.Working.Profile)

		old, err := repo.Event(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, part.StatusOpen, old.Status)
		assert.Nil(t, old.Working)

		open, err = repo.FindOpen(ctx, "profile-b", "sew")
		require.NoError(t, err)
		assert.Nil(t, open)

		listed, err := repo.ListByStatus(ctx, part.StatusPackage)
		require.NoError(t, err)
		found := false
		for _, snap := range listed {
			if snap.Part.ID == p.ID {
				found = true
				assert.Equal(t, next.ID, snap.Event.ID)
			}
		}
		assert.True(t, found)
	})

	t.Run("set quantity", func(t *testing.T) {
		p, e := newBatch("profile-c", "sew")
		require.NoError(t, repo.Create(ctx, p, e))
		require.NoError(t, repo.SetQuantity(ctx, p.ID, 7))

		got, err := repo.Part(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, got.Quantity)
	})

	t.Run("modified since", func(t *testing.T) {
		cutoff := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

		stale, staleEvent := newBatch("profile-m1", "sew")
		staleEvent.Status = part.StatusCompleted
		staleEvent.Modified = cutoff.Add(-time.Hour)
		require.NoError(t, repo.Create(ctx, stale, staleEvent))

		fresh, freshEvent := newBatch("profile-m2", "sew")
		freshEvent.Status = part.StatusCompleted
		freshEvent.Modified = cutoff.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, fresh, freshEvent))

		listed, err := repo.ListModifiedSince(ctx, cutoff, part.StatusCompleted)
		require.NoError(t, err)
		ids := map[string]bool{}
		for _, snap := range listed {
			ids[snap.Part.ID] = true
		}
		assert.True(t, ids[fresh.ID])
		assert.False(t, ids[stale.ID])

		// A new version moves the stale batch back into the window.
		touched := staleEvent.Clone()
		require.NoError(t, repo.Save(ctx, touched))
		listed, err = repo.ListModifiedSince(ctx, cutoff, part.StatusCompleted)
		require.NoError(t, err)
		found := false
		for _, snap := range listed {
			if snap.Part.ID == stale.ID {
				found = true
				assert.Equal(t, touched.ID, snap.Event.ID)
			}
		}
		assert.True(t, found)
	})

	t.Run("returned values are detached", func(t *testing.T) {
		p, e := newBatch("profile-d", "sew")
		e.AddProduct(part.SKU{Product: "a"}, 1)
		require.NoError(t, repo.Create(ctx, p, e))

		loaded, err := repo.CurrentEvent(ctx, p.ID)
		require.NoError(t, err)
		loaded.Products[0].Total = 99

		again, err := repo.CurrentEvent(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Products[0].Total)
	})

	t.Run("duplicate batch", func(t *testing.T) {
		p, e := newBatch("profile-e", "sew")
		require.NoError(t, repo.Create(ctx, p, e))

		other := part.NewEvent(p.ID, "sew", "profile-e", part.CompleteNothing)
		err := repo.Create(ctx, p, other)
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeOpenPartExists))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.Part(ctx, "missing")
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodePartNotFound))

		_, err = repo.CurrentEvent(ctx, "missing")
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodePartNotFound))

		_, err = repo.Event(ctx, "missing")
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeEventNotFound))

		err = repo.SetQuantity(ctx, "missing", 1)
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodePartNotFound))

		orphan := part.NewEvent("missing", "sew", "profile", part.CompleteNothing)
		err = repo.Save(ctx, orphan)
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodePartNotFound))

		err = repo.Delete(ctx, "missing")
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodePartNotFound))
	})

	t.Run("delete removes versions", func(t *testing.T) {
		p, e := newBatch("profile-f", "sew")
		require.NoError(t, repo.Create(ctx, p, e))
		next := e.Clone()
		require.NoError(t, repo.Save(ctx, next))

		require.NoError(t, repo.Delete(ctx, p.ID))

		_, err := repo.Part(ctx, p.ID)
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodePartNotFound))
		_, err = repo.Event(ctx, e.ID)
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeEventNotFound))
		_, err = repo.Event(ctx, next.ID)
		assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeEventNotFound))
	})

	t.Run("nil input", func(t *testing.T) {
		assert.True(t, manufacture.HasCode(repo.Create(ctx, nil, nil), manufacture.ErrCodeValidation))
		assert.True(t, manufacture.HasCode(repo.Save(ctx, nil), manufacture.ErrCodeValidation))
	})
}
