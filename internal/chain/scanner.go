package chain

import "context"

// RangeFetcher returns the items found in the inclusive block range [from, to].
type RangeFetcher[T any] func(ctx context.Context, from, to uint64) ([]T, error)

// BackwardScanner pages backward from a tip block in fixed-size chunks over a
// bounded window, stopping early once enough items are collected. A failed
// chunk is reported and skipped; the scan never fails as a whole.
type BackwardScanner[T any] struct {
	ChunkSize    uint64
	Window       uint64
	Fetch        RangeFetcher[T]
	OnChunkError func(from, to uint64, err error)
}

// Scan returns items newest chunk first, in fetch order within each chunk.
// limit <= 0 scans the whole window.
func (s BackwardScanner[T]) Scan(ctx context.Context, tip uint64, limit int) []T {
	if s.ChunkSize == 0 || s.Window == 0 || s.Fetch == nil {
		return nil
	}

	var lowest uint64
	if tip+1 > s.Window {
		lowest = tip + 1 - s.Window
	}

	var out []T
	to := tip
	for ctx.Err() == nil {
		from := lowest
		if to-lowest+1 > s.ChunkSize {
			from = to + 1 - s.ChunkSize
		}

		items, err := s.Fetch(ctx, from, to)
		if err != nil {
			if s.OnChunkError != nil {
				s.OnChunkError(from, to, err)
			}
		} else {
			out = append(out, items...)
		}

		if limit > 0 && len(out) >= limit {
			break
		}
		if from == lowest {
			break
		}
		to = from - 1
	}
	return out
}
