// Package stream implements the correctness-critical glue that ties block
// listings together: select (filtering), merge (k-way de-duplicating
// union), and missing (set difference) over ascending, possibly-erroring
// block streams.
package stream

import (
	"context"

	"github.com/dittoblocks/blocks/pkg/store"
)

// Select filters in, an ascending-id stream, according to opts: items with
// hex(id) <= opts.After are dropped, items are passed through only when
// opts.Algorithm is empty or matches, and the output closes once
// hex(id) >= opts.Before or opts.Limit items have been emitted. An in-band
// error is forwarded as the final item before the output closes. Select
// never reorders its input.
func Select(ctx context.Context, opts store.ListOptions, in <-chan store.ListItem) <-chan store.ListItem {
	out := make(chan store.ListItem)

	go func() {
		defer close(out)
		emitted := 0

		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				if item.Err != nil {
					send(ctx, out, item)
					return
				}

				id := item.Block.ID()
				hex := id.Hex()

				if opts.After != "" && hex <= opts.After {
					continue
				}
				if opts.Before != "" && hex >= opts.Before {
					return
				}
				if opts.Algorithm != "" && id.Algorithm() != opts.Algorithm {
					continue
				}

				if !send(ctx, out, item) {
					return
				}
				emitted++
				if opts.Limit > 0 && emitted >= opts.Limit {
					return
				}
			}
		}
	}()

	return out
}

// send delivers item to out, respecting cancellation. It reports whether
// the send succeeded.
func send(ctx context.Context, out chan<- store.ListItem, item store.ListItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// head tracks one input's current unconsumed item.
type head struct {
	ch      <-chan store.ListItem
	item    store.ListItem
	hasItem bool
	drained bool
}

func (h *head) pull(ctx context.Context) bool {
	if h.drained {
		return false
	}
	select {
	case item, ok := <-h.ch:
		if !ok {
			h.drained = true
			h.hasItem = false
			return false
		}
		h.item = item
		h.hasItem = true
		return true
	case <-ctx.Done():
		h.drained = true
		h.hasItem = false
		return false
	}
}

// Merge performs a k-way merge of ascending, duplicate-id streams into a
// single ascending stream, dropping duplicates by id (first occurrence
// among the inputs wins). It pulls one head from each non-drained input,
// emits the smallest id, and advances past that id in every input that
// shares it. The output closes when all inputs drain. An error from any
// input is forwarded and the output closes immediately after.
func Merge(ctx context.Context, ins ...<-chan store.ListItem) <-chan store.ListItem {
	out := make(chan store.ListItem)

	go func() {
		defer close(out)

		heads := make([]*head, len(ins))
		for i, ch := range ins {
			heads[i] = &head{ch: ch}
		}

		// Prime every head.
		for _, h := range heads {
			h.pull(ctx)
		}

		for {
			// Find the smallest hex id among heads with an item, and
			// check for a propagated error.
			var (
				bestIdx = -1
				bestHex string
			)
			for i, h := range heads {
				if !h.hasItem {
					continue
				}
				if h.item.Err != nil {
					send(ctx, out, h.item)
					return
				}
				hex := h.item.Block.ID().Hex()
				if bestIdx == -1 || hex < bestHex {
					bestIdx = i
					bestHex = hex
				}
			}

			if bestIdx == -1 {
				return
			}

			if !send(ctx, out, heads[bestIdx].item) {
				return
			}

			// Advance past bestHex in every head that shares it.
			for _, h := range heads {
				for h.hasItem && h.item.Err == nil && h.item.Block.ID().Hex() == bestHex {
					if !h.pull(ctx) {
						break
					}
				}
			}
		}
	}()

	return out
}

// Missing emits the blocks in source whose id does not appear in dest.
// Both streams must be ascending. It runs in O(|source|+|dest|) using one
// head from each; when dest drains first, the remainder of source is
// drained into the output unchanged. An error from either input is
// forwarded and the output closes immediately after.
func Missing(ctx context.Context, source, dest <-chan store.ListItem) <-chan store.ListItem {
	out := make(chan store.ListItem)

	go func() {
		defer close(out)

		src := &head{ch: source}
		dst := &head{ch: dest}
		src.pull(ctx)
		dst.pull(ctx)

		for src.hasItem {
			if src.item.Err != nil {
				send(ctx, out, src.item)
				return
			}
			if dst.hasItem && dst.item.Err != nil {
				send(ctx, out, dst.item)
				return
			}

			if !dst.hasItem {
				if !send(ctx, out, src.item) {
					return
				}
				if !src.pull(ctx) {
					return
				}
				continue
			}

			srcHex := src.item.Block.ID().Hex()
			dstHex := dst.item.Block.ID().Hex()

			switch {
			case srcHex < dstHex:
				if !send(ctx, out, src.item) {
					return
				}
				src.pull(ctx)
			case srcHex > dstHex:
				dst.pull(ctx)
			default:
				src.pull(ctx)
				dst.pull(ctx)
			}
		}
	}()

	return out
}
