package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo(t *testing.T) {
	f := Go(func() (int, error) { return 42, nil })
	v, err := f.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	errBoom := errors.New("boom")
	g := Go(func() (string, error) { return "", errBoom })
	_, err = g.Await(t.Context())
	require.ErrorIs(t, err, errBoom)
}

func TestResolveOnce(t *testing.T) {
	f := New[string]()
	assert.True(t, f.Resolve("first", nil))
	assert.False(t, f.Resolve("second", errors.New("late")))

	v, err := f.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	select {
	case <-f.Done():
	default:
		t.Fatal("Done not closed after Resolve")
	}
}

func TestAwaitContext(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The Future is still usable after an abandoned wait.
	f.Resolve(7, nil)
	v, err := f.Await(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestThen(t *testing.T) {
	f := New[int]()
	got := make(chan int, 1)
	f.Then(func(v int, err error) {
		assert.NoError(t, err)
		got <- v
	})
	f.Resolve(3, nil)

	select {
	case v := <-got:
		assert.Equal(t, 3, v)
	case <-time.After(time.Second):
		t.Fatal("Then callback not called")
	}
}
