package filesystem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportedViews(t *testing.T) {
	views := SupportedViews()
	assert.ElementsMatch(t, []string{"basic", "owner", "posix", "dos", "user"}, views)
}

func TestSupportedViewsReferenceStable(t *testing.T) {
	// Repeated queries must return the same underlying slice, including under
	// concurrent first access.
	const goroutines = 16
	results := make([][]string, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = SupportedViews()
		}()
	}
	wg.Wait()

	first := SupportedViews()
	require.NotEmpty(t, first)
	for i := range goroutines {
		assert.Equal(t, &first[0], &results[i][0], "view set must be the same instance")
	}
}
