// internal/browser/chrome/context_utils_test.go
package chrome

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("inherits values from the tab context", func(t *testing.T) {
		tab := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(tab, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("cancelled by the tab context", func(t *testing.T) {
		tab, cancelTab := context.WithCancel(context.Background())
		combined, cancel := CombineContext(tab, context.Background())
		defer cancel()

		cancelTab()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("cancelled by the operation context", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool { return combined.Err() != nil },
			100*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("operation deadline applies", func(t *testing.T) {
		op, cancelOp := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancelOp()
		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context outlived the operation deadline")
		}
	})

	t.Run("cancel does not touch the parents", func(t *testing.T) {
		tab, cancelTab := context.WithCancel(context.Background())
		defer cancelTab()
		op, cancelOp := context.WithCancel(context.Background())
		defer cancelOp()

		combined, cancel := CombineContext(tab, op)
		cancel()
		require.Error(t, combined.Err())
		assert.NoError(t, tab.Err())
		assert.NoError(t, op.Err())
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key, "tab-1"), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.Equal(t, "tab-1", detached.Value(key))
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, ok := detached.Deadline()
	assert.False(t, ok)
}
