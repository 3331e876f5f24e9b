package appointments

import "sync"

// Allocator hands out sequential appointment tokens.
type Allocator struct {
	mu   sync.Mutex
	next Token
}

// NewAllocator returns an allocator whose first token is 1.
func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// InitFrom seeds the allocator from a persisted record count.
// Deletions can leave a stored token above count, so InitFromRecords is preferred.
func (a *Allocator) InitFrom(count int) {
	if count < 0 {
		count = 0
	}
	a.raiseTo(Token(count + 1))
}

// InitFromRecords seeds the allocator one past the highest stored token.
// Seeding never lowers the counter, so a reload cannot reissue a token.
func (a *Allocator) InitFromRecords(records []Appointment) {
	var highest Token
	for _, record := range records {
		if record.Token > highest {
			highest = record.Token
		}
	}
	a.raiseTo(highest + 1)
}

func (a *Allocator) raiseTo(next Token) {
	a.mu.Lock()
	if next > a.next {
		a.next = next
	}
	a.mu.Unlock()
}

// Next returns the current token and advances the counter.
func (a *Allocator) Next() Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	token := a.next
	a.next++
	return token
}

// Peek reports the token the next call to Next will return.
func (a *Allocator) Peek() Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
