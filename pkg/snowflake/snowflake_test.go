package snowflake

import (
	"sync"
	"testing"
)

func TestGenerateUniqueUnderConcurrency(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				ids = append(ids, node.Generate())
			}
			mu.Lock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}

func TestGenerateMonotonicSingleGoroutine(t *testing.T) {
	node, err := NewNode(2)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	prev := node.Generate()
	for i := 0; i < 1000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestNewNodeRejectsOutOfRange(t *testing.T) {
	if _, err := NewNode(-1); err == nil {
		t.Error("expected error for negative node")
	}
	if _, err := NewNode(1024); err == nil {
		t.Error("expected error for node > 1023")
	}
}
