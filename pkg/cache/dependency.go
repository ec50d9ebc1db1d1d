package cache

import (
	"context"
	"fmt"
	"strconv"
)

// invalidateBatch bounds how many generation keys one GetKeys call resolves.
const invalidateBatch = 500

// NextKey advances the generation counter of group and returns the
// generation key (group followed by the new counter value). The first
// call for a group returns group+"1".
func NextKey(ctx context.Context, store Store, group, namespace string) (string, error) {
	n, err := store.Incr(ctx, group, 1, namespace, 0)
	if err != nil {
		return "", fmt.Errorf("next dependency key %q: %w", group, err)
	}
	return group + strconv.FormatInt(n, 10), nil
}

// Invalidate removes every response stored under a dependency group:
// the request keys referenced by the group's generation keys, the
// generation keys themselves, and the counter. It returns the number of
// request keys removed.
func Invalidate(ctx context.Context, store KeyStore, group, namespace string) (int, error) {
	n, err := store.Incr(ctx, group, 0, namespace, 0)
	if err != nil {
		return 0, fmt.Errorf("read dependency generation %q: %w", group, err)
	}

	keys := make([]string, 0, 2*n+1)
	keys = append(keys, group)
	removed := 0
	for first := int64(1); first <= n; first += invalidateBatch {
		last := min(first+invalidateBatch-1, n)
		generationKeys := make([]string, 0, last-first+1)
		for i := first; i <= last; i++ {
			generationKeys = append(generationKeys, group+strconv.FormatInt(i, 10))
		}

		requestKeys, err := store.GetKeys(ctx, namespace, generationKeys...)
		if err != nil {
			return 0, fmt.Errorf("resolve dependency keys of %q: %w", group, err)
		}
		keys = append(keys, generationKeys...)
		for _, generationKey := range generationKeys {
			if requestKey, ok := requestKeys[generationKey]; ok {
				keys = append(keys, requestKey)
				removed++
			}
		}
	}

	if err := store.Delete(ctx, namespace, keys...); err != nil {
		return 0, fmt.Errorf("invalidate %q: %w", group, err)
	}
	Invalidations.Inc()
	return removed, nil
}
