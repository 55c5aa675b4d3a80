package coalesce

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario 6 from spec.md §8: two concurrent Run calls for the same key
// produce exactly one underlying invocation, and both callers observe
// the same outcome.
func TestConcurrentCallersShareOneInvocation(t *testing.T) {
	g := New[string]()

	var calls int
	var mu sync.Mutex
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]string, 2)
	shared := make([]bool, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, s, err := g.Run("g:k", func() (string, error) {
				mu.Lock()
				calls++
				first := calls == 1
				mu.Unlock()
				if first {
					close(started)
					<-release
				}
				return "value-from-the-single-call", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
			shared[i] = s
		}(i)
	}

	<-started
	// Give the second caller time to join the in-flight call before the
	// first one is allowed to finish; otherwise it could arrive after the
	// call completed and legitimately start a fresh one.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	got := calls
	mu.Unlock()
	require.Equal(t, 1, got, "fn invoked more than once")
	require.Equal(t, results[0], results[1], "callers observed different results")
	require.Equal(t, "value-from-the-single-call", results[0])
}

func TestErrorIsFannedOutToo(t *testing.T) {
	g := New[int]()
	wantErr := errors.New("boom")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := g.Run("same-key", func() (int, error) {
				return 0, wantErr
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, wantErr, "expected every caller to see the shared error")
	}
}

func TestDifferentKeysRunIndependently(t *testing.T) {
	g := New[int]()
	v1, _, _ := g.Run("a", func() (int, error) { return 1, nil })
	v2, _, _ := g.Run("b", func() (int, error) { return 2, nil })
	require.Equal(t, 1, v1)
	require.Equal(t, 2, v2)
}
