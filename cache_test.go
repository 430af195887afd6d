package facetx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

func TestNewFacetValuesOrder(t *testing.T) {
	values := []*FacetValueBitSet{
		newFacetValueBitSet("a", bitset.New(8), 1),
		newFacetValueBitSet("b", bitset.New(8), 3),
		newFacetValueBitSet("c", bitset.New(8), 1),
		newFacetValueBitSet("d", bitset.New(8), 5),
	}
	fv := newFacetValues("brand", values)

	var got []string
	for _, v := range fv.Values {
		got = append(got, v.Value)
	}
	want := []string{"d", "b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, got)
		}
	}
}

func TestFacetValueBitSetEvict(t *testing.T) {
	v := newFacetValueBitSet("a", bitset.New(8).Set(3), 1)
	if v.BitSet() == nil {
		t.Fatal("Expected a bitset before eviction")
	}
	if !v.Evict() {
		t.Error("Expected first eviction to drop the bitset")
	}
	if v.Evict() {
		t.Error("Expected second eviction to be a no-op")
	}
	if v.BitSet() != nil {
		t.Error("Expected no bitset after eviction")
	}
	if v.Count != 1 {
		t.Errorf("Expected count to survive eviction, got %d", v.Count)
	}
}

func TestFacetCacheGetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("builds once under concurrency", func(t *testing.T) {
		var c facetCache
		var builds, stores atomic.Int32
		release := make(chan struct{})
		build := func(context.Context) (*FacetValues, error) {
			builds.Add(1)
			<-release
			return newFacetValues("color", nil), nil
		}
		stored := func(context.Context, *FacetValues) { stores.Add(1) }

		var wg sync.WaitGroup
		results := make([]*FacetValues, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				fv, err := c.getOrCreate(ctx, "color", build, stored)
				if err != nil {
					t.Errorf("getOrCreate failed: %v", err)
				}
				results[i] = fv
			}(i)
		}
		close(release)
		wg.Wait()

		if builds.Load() < 1 || stores.Load() != 1 {
			t.Errorf("Expected one stored build, got %d builds and %d stores", builds.Load(), stores.Load())
		}
		for i, fv := range results {
			if fv != results[0] {
				t.Errorf("Expected worker %d to share the stored entry", i)
			}
		}
	})

	t.Run("canceled caller does not fail the others", func(t *testing.T) {
		var c facetCache
		var builds atomic.Int32
		started := make(chan struct{})
		release := make(chan struct{})
		build := func(ctx context.Context) (*FacetValues, error) {
			builds.Add(1)
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return newFacetValues("color", nil), nil
		}

		ctxA, cancelA := context.WithCancel(ctx)
		errA := make(chan error, 1)
		go func() {
			_, err := c.getOrCreate(ctxA, "color", build, nil)
			errA <- err
		}()
		<-started

		type result struct {
			fv  *FacetValues
			err error
		}
		resB := make(chan result, 1)
		go func() {
			fv, err := c.getOrCreate(ctx, "color", build, nil)
			resB <- result{fv, err}
		}()

		cancelA()
		if err := <-errA; !errors.Is(err, ErrCanceled) {
			t.Errorf("Expected ErrCanceled, got %v", err)
		}
		close(release)

		b := <-resB
		if b.err != nil || b.fv == nil {
			t.Fatalf("Expected the live caller to get the entry, got %v", b.err)
		}
		if builds.Load() != 1 {
			t.Errorf("Expected one build, got %d", builds.Load())
		}
		if _, ok := c.get("color"); !ok {
			t.Error("Expected the entry to be stored after the canceled caller left")
		}
	})

	t.Run("failures are not cached", func(t *testing.T) {
		var c facetCache
		boom := errors.New("boom")
		_, err := c.getOrCreate(ctx, "color", func(context.Context) (*FacetValues, error) {
			return nil, boom
		}, nil)
		if !errors.Is(err, boom) {
			t.Fatalf("Expected build error, got %v", err)
		}
		if _, ok := c.get("color"); ok {
			t.Fatal("Expected failed build not to be cached")
		}

		fv, err := c.getOrCreate(ctx, "color", func(context.Context) (*FacetValues, error) {
			return newFacetValues("color", nil), nil
		}, nil)
		if err != nil || fv == nil {
			t.Fatalf("Expected retry to succeed, got %v", err)
		}
	})
}

func TestTailEvictionOptimizer(t *testing.T) {
	mk := func(field string, counts ...uint) *FacetValues {
		var values []*FacetValueBitSet
		for i, n := range counts {
			values = append(values, newFacetValueBitSet(string(rune('a'+i)), bitset.New(8), n))
		}
		return newFacetValues(field, values)
	}
	color := mk("color", 5, 3, 1)
	size := mk("size", 2)

	got := TailEvictionOptimizer{KeepPerField: 1}.SelectBitSetsToEvict([]*FacetValues{color, size})
	if len(got) != 2 || got[0] != color.Values[1] || got[1] != color.Values[2] {
		t.Errorf("Expected the two tail values of color, got %v", got)
	}

	color.Values[1].Evict()
	got = TailEvictionOptimizer{KeepPerField: 1}.SelectBitSetsToEvict([]*FacetValues{color, size})
	if len(got) != 1 || got[0] != color.Values[2] {
		t.Errorf("Expected already evicted values to be skipped, got %v", got)
	}
}
