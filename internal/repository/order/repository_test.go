package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tableside/internal/entity"
)

func TestAppendAssignsSequentialNumbers(t *testing.T) {
	ctx := context.Background()
	repo := New(1000)

	for i := 0; i < 3; i++ {
		o := &entity.Order{ID: string(rune('a' + i)), Status: entity.StatusPending}
		require.NoError(t, repo.Append(ctx, o))
		assert.Equal(t, int64(1000+i), o.Number)
	}
	assert.Equal(t, int64(1003), repo.NextNumber())

	err := repo.Append(ctx, &entity.Order{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, int64(1003), repo.NextNumber(), "rejected append must not consume a number")
}

func TestLookups(t *testing.T) {
	ctx := context.Background()
	repo := New(1000)
	require.NoError(t, repo.Append(ctx, &entity.Order{ID: "x", CustomerName: "Alice"}))

	byID, err := repo.GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.CustomerName)

	byNumber, err := repo.GetByNumber(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "x", byNumber.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByNumber(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := New(1)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, &entity.Order{ID: "old", CreatedAt: base}))
	require.NoError(t, repo.Append(ctx, &entity.Order{ID: "new", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Append(ctx, &entity.Order{ID: "tie", CreatedAt: base.Add(time.Minute)}))

	list := repo.List(ctx)
	ids := make([]string, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"tie", "new", "old"}, ids)
}

func TestUpdateMutatesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := New(1000)
	require.NoError(t, repo.Append(ctx, &entity.Order{ID: "x", Status: entity.StatusPending}))

	updated, err := repo.Update(ctx, "x", func(o *entity.Order) error {
		o.Status = entity.StatusPreparing
		o.Number = 1
		o.ID = "hijack"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPreparing, updated.Status)
	assert.Equal(t, int64(1000), updated.Number)
	assert.Equal(t, "x", updated.ID)

	stored, err := repo.GetByNumber(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPreparing, stored.Status)
	assert.Len(t, repo.List(ctx), 1)
}

func TestUpdateRejectionLeavesOrderUntouched(t *testing.T) {
	ctx := context.Background()
	repo := New(1000)
	require.NoError(t, repo.Append(ctx, &entity.Order{ID: "x", Status: entity.StatusPending}))

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "x", func(o *entity.Order) error {
		o.Status = entity.StatusCompleted
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := repo.GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, stored.Status)

	_, err = repo.Update(ctx, "missing", func(*entity.Order) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	repo := New(1000)
	o := &entity.Order{ID: "x", Items: []entity.LineItem{{ItemID: "1", Quantity: 1}}}
	require.NoError(t, repo.Append(ctx, o))

	o.Items[0].Quantity = 5
	got, err := repo.GetByID(ctx, "x")
	require.NoError(t, err)
	got.Items[0].Quantity = 7

	again, err := repo.GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestConcurrentAppendsNeverShareNumbers(t *testing.T) {
	ctx := context.Background()
	repo := New(1000)

	const n = 50
	var wg sync.WaitGroup
	numbers := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := &entity.Order{ID: string(rune(0x4e00 + i))}
			if err := repo.Append(ctx, o); err == nil {
				numbers <- o.Number
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool, n)
	for num := range numbers {
		assert.False(t, seen[num], "duplicate number %d", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, int64(1000+n), repo.NextNumber())
}
