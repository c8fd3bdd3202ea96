package vector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// runIndexContract exercises the behaviour every VectorIndex implementation shares.
func runIndexContract(t *testing.T, newIndex func(t *testing.T, dims int) VectorIndex) {
	ctx := context.Background()

	t.Run("ids_are_positions_sorted_by_distance", func(t *testing.T) {
		idx := newIndex(t, 3)
		if err := idx.Add(ctx, [][]float32{{0, 1, 0}, {1, 0, 0}}); err != nil {
			t.Fatal(err)
		}
		if err := idx.Add(ctx, [][]float32{{0.9, 0.1, 0}}); err != nil {
			t.Fatal(err)
		}
		if idx.Size() != 3 || idx.Dimensions() != 3 {
			t.Fatalf("Size=%d Dimensions=%d", idx.Size(), idx.Dimensions())
		}
		res, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 2 || res[0].ID != 1 || res[1].ID != 2 {
			t.Fatalf("unexpected hits: %+v %+v", res[0], res[1])
		}
		if res[0].Distance != 0 || res[1].Distance <= res[0].Distance {
			t.Errorf("distances not ascending squared L2: %v, %v", res[0].Distance, res[1].Distance)
		}
	})

	t.Run("k_larger_than_size", func(t *testing.T) {
		idx := newIndex(t, 2)
		_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})
		res, err := idx.Search(ctx, []float32{1, 0}, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 2 {
			t.Errorf("got %d hits, want 2", len(res))
		}
	})

	t.Run("empty", func(t *testing.T) {
		idx := newIndex(t, 2)
		res, err := idx.Search(ctx, []float32{1, 0}, 5)
		if err != nil || len(res) != 0 {
			t.Errorf("empty index: %v, %v", res, err)
		}
		if err := idx.Add(ctx, nil); err != nil {
			t.Errorf("adding nothing: %v", err)
		}
	})

	t.Run("dimension_mismatch_adds_nothing", func(t *testing.T) {
		idx := newIndex(t, 2)
		err := idx.Add(ctx, [][]float32{{1, 0}, {1, 2, 3}})
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Fatalf("expected ErrDimensionMismatch, got %v", err)
		}
		if idx.Size() != 0 {
			t.Errorf("partial add: size %d", idx.Size())
		}
		if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("query mismatch: %v", err)
		}
	})

	t.Run("truncate_undoes_tail", func(t *testing.T) {
		idx := newIndex(t, 2)
		_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})
		_ = idx.Add(ctx, [][]float32{{0.5, 0.5}, {0.9, 0.1}})
		if err := idx.Truncate(2); err != nil {
			t.Fatal(err)
		}
		if idx.Size() != 2 {
			t.Fatalf("size after truncate %d, want 2", idx.Size())
		}
		res, err := idx.Search(ctx, []float32{0.9, 0.1}, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(res) != 2 || res[0].ID != 0 {
			t.Errorf("hits after truncate: %d, first id %d", len(res), res[0].ID)
		}
		if err := idx.Add(ctx, [][]float32{{0, 1}}); err != nil {
			t.Fatal(err)
		}
		res, _ = idx.Search(ctx, []float32{0, 1}, 3)
		if res[0].ID != 1 && res[0].ID != 2 {
			t.Errorf("unexpected nearest id %d", res[0].ID)
		}
		if idx.Size() != 3 {
			t.Errorf("size after re-add %d, want 3", idx.Size())
		}
		if err := idx.Truncate(4); !errors.Is(err, ErrTruncateRange) {
			t.Errorf("growing truncate: %v", err)
		}
	})

	t.Run("save_load_round_trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.bin")
		idx := newIndex(t, 2)
		_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}})
		if err := idx.Save(path); err != nil {
			t.Fatal(err)
		}
		loaded := newIndex(t, 2)
		if err := loaded.Load(path); err != nil {
			t.Fatal(err)
		}
		if loaded.Size() != 3 {
			t.Fatalf("loaded size %d", loaded.Size())
		}
		res, _ := loaded.Search(ctx, []float32{0, 1}, 1)
		if len(res) != 1 || res[0].ID != 1 {
			t.Errorf("loaded index search: %+v", res)
		}
		if err := newIndex(t, 3).Load(path); err == nil {
			t.Error("expected error loading into a different dimension")
		}
	})

	t.Run("load_missing", func(t *testing.T) {
		err := newIndex(t, 2).Load(filepath.Join(t.TempDir(), "absent.bin"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})
}
