package exr

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelForCoversAllItems(t *testing.T) {
	defer SetParallelConfig(GetParallelConfig())
	for _, workers := range []int{0, 1, 4} {
		SetParallelConfig(ParallelConfig{NumWorkers: workers, GrainSize: 1})
		var hits [100]atomic.Int32
		ParallelFor(len(hits), func(i int) {
			hits[i].Add(1)
		})
		for i := range hits {
			if got := hits[i].Load(); got != 1 {
				t.Fatalf("workers=%d: item %d ran %d times", workers, i, got)
			}
		}
	}
}

func TestParallelForWithErrorPropagates(t *testing.T) {
	defer SetParallelConfig(GetParallelConfig())
	SetParallelConfig(ParallelConfig{NumWorkers: 4, GrainSize: 1})
	sentinel := errors.New("boom")
	err := ParallelForWithError(64, func(i int) error {
		if i == 17 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the worker's error", err)
	}
}

func TestParallelGrainSizeRunsInline(t *testing.T) {
	defer SetParallelConfig(GetParallelConfig())
	SetParallelConfig(ParallelConfig{NumWorkers: 8, GrainSize: 100})
	if got := effectiveWorkers(10); got != 1 {
		t.Fatalf("effectiveWorkers(10) with grain 100 = %d, want 1", got)
	}
}

// TestParallelDecodeMatchesSerial decodes the same file with one worker
// and with many and compares the results.
func TestParallelDecodeMatchesSerial(t *testing.T) {
	defer SetParallelConfig(GetParallelConfig())
	h := rgbHeader(t, 64, 128, CompressionZIPS)
	img := NewImage(h)
	gradient(img)
	data := encodeToBytes(t, img)

	decode := func(workers int) *Image {
		t.Helper()
		SetParallelConfig(ParallelConfig{NumWorkers: workers, GrainSize: 1})
		f, err := OpenBytes(data)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		out, err := DecodeImage(f)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	serial := decode(1)
	parallel := decode(8)
	sameImage(t, serial, parallel)
}
