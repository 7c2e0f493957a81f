package util

import "golang.org/x/sync/errgroup"

// SafeSetLimit bounds the number of goroutines g runs at once. Limits below one
// are raised to one, as errgroup would otherwise panic or run unbounded.
func SafeSetLimit(g *errgroup.Group, limit int) {
	if limit < 1 {
		limit = 1
	}

	g.SetLimit(limit)
}
