package xid

import (
	"strings"
	"sync"
	"testing"
)

func TestNewCarriesPrefix(t *testing.T) {
	id := New("line")
	if !strings.HasPrefix(id, "line-") {
		t.Fatalf("expected line- prefix, got %s", id)
	}
	if id == New("line") {
		t.Fatalf("expected distinct ids")
	}
}

func TestSequenceConcurrentUniqueness(t *testing.T) {
	seq := NewSequence("RCP")

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	results := make(chan string, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results <- seq.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, workers*perWorker)
	for id := range results {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d ids, got %d", workers*perWorker, len(seen))
	}
}

func TestSequenceDefaultsPrefix(t *testing.T) {
	seq := NewSequence("")
	if !strings.HasPrefix(seq.Next(), "RCP-") {
		t.Fatalf("expected RCP- default prefix")
	}
}
