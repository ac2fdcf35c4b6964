// Package candidates holds the texts produced by the generation fan-out of
// one run.
package candidates

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSlotFilled = errors.New("generator already recorded a candidate")
	ErrEmptyText  = errors.New("candidate text is empty")
)

// Candidate is one generated option. Values are never mutated after Record.
type Candidate struct {
	GeneratorID string    `json:"generator_id"`
	Text        string    `json:"text"`
	ProducedAt  time.Time `json:"produced_at"`
}

// Pool stores candidates in generation order. It is owned by a single run and
// is not safe for concurrent use.
type Pool struct {
	items   []Candidate
	filled  map[string]int
	invoked map[string]int
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		filled:  make(map[string]int),
		invoked: make(map[string]int),
	}
}

// MarkInvoked notes that a generator was dispatched.
func (p *Pool) MarkInvoked(generatorID string) {
	p.invoked[generatorID]++
}

// Invoked reports how many times a generator was dispatched.
func (p *Pool) Invoked(generatorID string) int {
	return p.invoked[generatorID]
}

// Record appends a candidate for generatorID. Each generator fills its slot once.
func (p *Pool) Record(generatorID, text string, producedAt time.Time) (Candidate, error) {
	if text == "" {
		return Candidate{}, fmt.Errorf("%w: %s", ErrEmptyText, generatorID)
	}
	if _, ok := p.filled[generatorID]; ok {
		return Candidate{}, fmt.Errorf("%w: %s", ErrSlotFilled, generatorID)
	}
	c := Candidate{GeneratorID: generatorID, Text: text, ProducedAt: producedAt}
	p.filled[generatorID] = len(p.items)
	p.items = append(p.items, c)
	return c, nil
}

// IsComplete is true iff every required generator has a recorded candidate.
func (p *Pool) IsComplete(required []string) bool {
	for _, id := range required {
		if _, ok := p.filled[id]; !ok {
			return false
		}
	}
	return true
}

// All returns a copy of the candidates in generation order.
func (p *Pool) All() []Candidate {
	out := make([]Candidate, len(p.items))
	copy(out, p.items)
	return out
}

// Len returns the number of recorded candidates.
func (p *Pool) Len() int { return len(p.items) }

// Match finds the candidate whose text equals text byte for byte.
func (p *Pool) Match(text string) (Candidate, bool) {
	for _, c := range p.items {
		if c.Text == text {
			return c, true
		}
	}
	return Candidate{}, false
}

// First returns the earliest recorded candidate.
func (p *Pool) First() (Candidate, bool) {
	if len(p.items) == 0 {
		return Candidate{}, false
	}
	return p.items[0], true
}
