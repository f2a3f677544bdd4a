// Package seatmap tracks per-event seat availability in Redis bitmaps.
// Bit i of the key seats:<eventID> is set when seat i+1 is taken. Every
// mutation is a single Redis command or one atomic Lua script, so the map
// is safe under unrestricted concurrent access without client-side locks.
package seatmap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/avidast/ticketd/internal/repository"
)

// chunkBits is the width of one BITFIELD read when scanning a bitmap.
// Redis caps unsigned bitfield reads at 63 bits, so availability scans go
// in fixed 32-bit chunks, decoded most-significant-bit-first.
const chunkBits = 32

// acquireAllScript checks every requested bit and only then sets them, as
// one atomic unit on the server. It returns 0 without modifying anything
// when any seat is already taken, 1 after setting all bits otherwise.
var acquireAllScript = redis.NewScript(`
    for i = 1, #ARGV do
        if redis.call('GETBIT', KEYS[1], ARGV[i]) == 1 then
            return 0
        end
    end
    for i = 1, #ARGV do
        redis.call('SETBIT', KEYS[1], ARGV[i], 1)
    end
    return 1
`)

// Store provides atomic seat acquisition and release over a Redis client.
type Store struct {
	rdb *redis.Client
}

// NewStore returns a Store bound to the given Redis client.
func NewStore(rdb *redis.Client) *Store {
	if rdb == nil {
		panic("nil redis client passed to seatmap.NewStore")
	}
	return &Store{rdb: rdb}
}

func key(eventID uint64) string {
	return fmt.Sprintf("seats:%d", eventID)
}

// IsTaken reports whether the given 1-based seat is currently taken.
func (s *Store) IsTaken(ctx context.Context, eventID uint64, seat uint32) (bool, error) {
	if seat < 1 {
		return false, fmt.Errorf("%w: seat must be >= 1", repository.ErrInvalidArgument)
	}
	v, err := s.rdb.GetBit(ctx, key(eventID), int64(seat-1)).Result()
	if err != nil {
		return false, fmt.Errorf("seatmap: getbit: %w", err)
	}
	return v == 1, nil
}

// TryAcquire atomically sets the bit for seat and reports whether it was
// previously free. SETBIT returns the old value, so the read and write are
// one indivisible operation; whichever caller lands first wins.
func (s *Store) TryAcquire(ctx context.Context, eventID uint64, seat uint32) (bool, error) {
	if seat < 1 {
		return false, fmt.Errorf("%w: seat must be >= 1", repository.ErrInvalidArgument)
	}
	prev, err := s.rdb.SetBit(ctx, key(eventID), int64(seat-1), 1).Result()
	if err != nil {
		return false, fmt.Errorf("seatmap: setbit: %w", err)
	}
	return prev == 0, nil
}

// AcquireAll sets the bits for every listed seat as one atomic unit. When
// any seat in the list is already taken no bit is modified and AcquireAll
// returns false. An empty list acquires nothing and succeeds.
func (s *Store) AcquireAll(ctx context.Context, eventID uint64, seats []uint32) (bool, error) {
	if len(seats) == 0 {
		return true, nil
	}
	offsets := make([]interface{}, 0, len(seats))
	for _, seat := range seats {
		if seat < 1 {
			return false, fmt.Errorf("%w: seat must be >= 1", repository.ErrInvalidArgument)
		}
		offsets = append(offsets, int64(seat-1))
	}
	n, err := acquireAllScript.Run(ctx, s.rdb, []string{key(eventID)}, offsets...).Int()
	if err != nil {
		return false, fmt.Errorf("seatmap: acquire script: %w", err)
	}
	return n == 1, nil
}

// Release clears the bit for seat. Clearing an already-clear bit is a
// no-op, so releasing twice is safe.
func (s *Store) Release(ctx context.Context, eventID uint64, seat uint32) error {
	if seat < 1 {
		return fmt.Errorf("%w: seat must be >= 1", repository.ErrInvalidArgument)
	}
	if err := s.rdb.SetBit(ctx, key(eventID), int64(seat-1), 0).Err(); err != nil {
		return fmt.Errorf("seatmap: release: %w", err)
	}
	return nil
}

// Availability returns taken/free flags for seats 1..capacity in seat
// order. The bitmap is read in fixed 32-bit BITFIELD chunks; DecodeChunks
// turns them back into per-seat booleans.
func (s *Store) Availability(ctx context.Context, eventID uint64, capacity uint32) ([]bool, error) {
	if capacity == 0 {
		return []bool{}, nil
	}
	args := make([]interface{}, 0, 3*((int(capacity)+chunkBits-1)/chunkBits))
	for off := 0; off < int(capacity); off += chunkBits {
		args = append(args, "GET", fmt.Sprintf("u%d", chunkBits), int64(off))
	}
	chunks, err := s.rdb.BitField(ctx, key(eventID), args...).Result()
	if err != nil {
		return nil, fmt.Errorf("seatmap: bitfield: %w", err)
	}
	return DecodeChunks(chunks, capacity), nil
}

// DecodeChunks expands fixed-width bitfield chunks into one flag per seat.
// Redis returns each unsigned chunk with the lowest seat of the chunk in
// the most significant bit, so bits are peeled off MSB-first.
func DecodeChunks(chunks []int64, capacity uint32) []bool {
	taken := make([]bool, capacity)
	for ci, chunk := range chunks {
		base := ci * chunkBits
		for j := 0; j < chunkBits; j++ {
			idx := base + j
			if idx >= int(capacity) {
				return taken
			}
			taken[idx] = chunk>>(chunkBits-1-j)&1 == 1
		}
	}
	return taken
}

// CountTaken returns the number of taken seats for the event.
func (s *Store) CountTaken(ctx context.Context, eventID uint64) (uint32, error) {
	n, err := s.rdb.BitCount(ctx, key(eventID), nil).Result()
	if err != nil {
		return 0, fmt.Errorf("seatmap: bitcount: %w", err)
	}
	return uint32(n), nil
}

// CountFree returns how many of the first capacity seats are still free,
// floored at zero in case stray bits exist past the capacity boundary.
func (s *Store) CountFree(ctx context.Context, eventID uint64, capacity uint32) (uint32, error) {
	taken, err := s.CountTaken(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if taken >= capacity {
		return 0, nil
	}
	return capacity - taken, nil
}

// Cleanup deletes the event's entire bitmap. Deleting a missing key is a
// no-op, so cleanup may run any number of times once an event is over.
func (s *Store) Cleanup(ctx context.Context, eventID uint64) error {
	if err := s.rdb.Del(ctx, key(eventID)).Err(); err != nil {
		return fmt.Errorf("seatmap: cleanup: %w", err)
	}
	return nil
}
