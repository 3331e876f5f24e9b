package appointments

import (
	"sync"
	"testing"
)

func TestAllocatorStartsAtOne(t *testing.T) {
	allocator := NewAllocator()
	if token := allocator.Next(); token != 1 {
		t.Fatalf("expected first token 1, got %d", token)
	}
	if token := allocator.Next(); token != 2 {
		t.Fatalf("expected second token 2, got %d", token)
	}
}

func TestAllocatorInitFromCount(t *testing.T) {
	allocator := NewAllocator()
	allocator.InitFrom(4)
	if token := allocator.Next(); token != 5 {
		t.Fatalf("expected token 5, got %d", token)
	}
}

func TestAllocatorInitFromRecordsExceedsEveryToken(t *testing.T) {
	tests := []struct {
		name    string
		tokens  []Token
		expects Token
	}{
		{name: "empty", tokens: nil, expects: 1},
		{name: "dense", tokens: []Token{1, 2, 3}, expects: 4},
		{name: "gap-after-delete", tokens: []Token{1, 5}, expects: 6},
		{name: "unordered", tokens: []Token{9, 2, 4}, expects: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]Appointment, 0, len(tt.tokens))
			for _, token := range tt.tokens {
				records = append(records, Appointment{Token: token})
			}
			allocator := NewAllocator()
			allocator.InitFromRecords(records)
			next := allocator.Next()
			if next != tt.expects {
				t.Fatalf("expected %d, got %d", tt.expects, next)
			}
			for _, token := range tt.tokens {
				if next <= token {
					t.Fatalf("next token %d does not exceed stored token %d", next, token)
				}
			}
		})
	}
}

func TestAllocatorCountSeedCanCollide(t *testing.T) {
	records := []Appointment{{Token: 1}, {Token: 3}}
	countSeeded := NewAllocator()
	countSeeded.InitFrom(len(records))
	if countSeeded.Peek() != 3 {
		t.Fatalf("expected count seed to reissue token 3, got %d", countSeeded.Peek())
	}
}

func TestAllocatorIssuesUniqueTokensConcurrently(t *testing.T) {
	allocator := NewAllocator()
	const workers = 16
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[Token]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				token := allocator.Next()
				mu.Lock()
				seen[token] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique tokens, got %d", workers*perWorker, len(seen))
	}
}

func TestAllocatorReseedNeverLowersCounter(t *testing.T) {
	allocator := NewAllocator()
	allocator.InitFromRecords([]Appointment{{Token: 1}, {Token: 2}, {Token: 3}})
	for i := 0; i < 3; i++ {
		allocator.Next()
	}

	allocator.InitFromRecords([]Appointment{{Token: 1}, {Token: 2}})
	if token := allocator.Next(); token != 7 {
		t.Fatalf("expected reseed to keep counter at 7, got %d", token)
	}

	allocator.InitFrom(1)
	if token := allocator.Peek(); token != 8 {
		t.Fatalf("expected count seed to keep counter at 8, got %d", token)
	}

	allocator.InitFromRecords([]Appointment{{Token: 20}})
	if token := allocator.Peek(); token != 21 {
		t.Fatalf("expected seed above stored token 20, got %d", token)
	}
}
