// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "golang.org/x/sync/errgroup"

// parallelFor fans f out across n independent indices on a bounded worker
// pool and returns after every call is done.
func (sk *ServerKey) parallelFor(n int, f func(i int) error) error {
	g := new(errgroup.Group)
	g.SetLimit(sk.maxWorkers)
	for i := 0; i < n; i++ {
		g.Go(func() error { return f(i) })
	}
	return g.Wait()
}

// parallelForEachBlock fans f out across blocks on a bounded worker pool.
// Blocks are independent units of carry-free computation, so ordering
// between them does not matter.
func (sk *ServerKey) parallelForEachBlock(blocks []*Block, f func(i int, b *Block) error) error {
	return sk.parallelFor(len(blocks), func(i int) error { return f(i, blocks[i]) })
}

// join runs two independent branches concurrently and waits for both.
// Bootstrap calls are not abortable mid-flight, so there is no cancellation;
// the first error is reported after both branches complete.
func join(left, right func() error) error {
	g := new(errgroup.Group)
	g.Go(left)
	g.Go(right)
	return g.Wait()
}
