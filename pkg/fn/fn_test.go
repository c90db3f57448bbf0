package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
)

// mustVal unwraps a Result, failing the test on error.
func mustVal[T any](t *testing.T, r Result[T]) T {
	t.Helper()
	v, err := r.Unwrap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
}

func TestFromPair(t *testing.T) {
	r := FromPair(strconv.Atoi("42"))
	if mustVal(t, r) != 42 {
		t.Fatal("FromPair failed")
	}
	e := FromPair(strconv.Atoi("nope"))
	if e.IsOk() {
		t.Fatal("FromPair should fail")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	v := mustVal(t, all)
	if len(v) != 3 || v[0] != 1 {
		t.Fatal("Collect failed")
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("e1")), Err[int](errors.New("e2"))})
	_, err := bad.Unwrap()
	if err == nil || err.Error() != "e1" {
		t.Fatal("Collect should return first error")
	}
}

// --- Stages ---

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, v int) Result[int] { return Err[int](boom) }
	second := func(_ context.Context, v int) Result[string] {
		t.Fatal("second stage should not run")
		return Ok("")
	}

	r := Then(first, second)(context.Background(), 1)
	_, err := r.Unwrap()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestThenComposes(t *testing.T) {
	double := func(_ context.Context, v int) Result[int] { return Ok(v * 2) }
	str := func(_ context.Context, v int) Result[string] { return Ok(strconv.Itoa(v)) }

	r := Then(double, str)(context.Background(), 21)
	if mustVal(t, r) != "42" {
		t.Fatalf("expected 42, got %v", r)
	}
}

func TestBatchStage(t *testing.T) {
	double := func(_ context.Context, v int) Result[int] { return Ok(v * 2) }
	r := BatchStage(2, double)(context.Background(), []int{1, 2, 3, 4})
	got := mustVal(t, r)
	want := []int{2, 4, 6, 8}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestBatchStageFirstError(t *testing.T) {
	boom := errors.New("boom")
	stage := func(_ context.Context, v int) Result[int] {
		if v == 2 {
			return Err[int](boom)
		}
		return Ok(v)
	}
	r := BatchStage(1, stage)(context.Background(), []int{1, 2, 3})
	_, err := r.Unwrap()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestTapStage(t *testing.T) {
	var calls atomic.Int32
	tap := TapStage(func(_ context.Context, v int) { calls.Add(1) })
	r := tap(context.Background(), 5)
	if mustVal(t, r) != 5 {
		t.Fatal("tap should pass value through")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	stage := TracedStage("double", func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	if mustVal(t, stage(context.Background(), 3)) != 6 {
		t.Fatal("traced stage should pass value through")
	}

	boom := errors.New("boom")
	bad := TracedStage("bad", func(_ context.Context, v int) Result[int] { return Err[int](boom) })
	_, err := bad(context.Background(), 3).Unwrap()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

// --- Parallel ---

func TestParMapResultPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := ParMapResult(items, 3, func(v int) Result[int] { return Ok(v * 10) })
	for i, r := range results {
		if mustVal(t, r) != items[i]*10 {
			t.Fatalf("index %d out of order", i)
		}
	}
}

// --- Slices ---

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("n <= 0 should return nil")
	}
}

func TestMapAndFilter(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[2] != 6 {
		t.Fatalf("unexpected map result: %v", doubled)
	}
	odd := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 1 })
	if len(odd) != 2 || odd[1] != 3 {
		t.Fatalf("unexpected filter result: %v", odd)
	}
}
