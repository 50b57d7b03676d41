// Package summary condenses several accomplishment descriptions into one line.
package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Delegate condenses descriptions that evidence one indicator.
type Delegate interface {
	Summarize(ctx context.Context, label string, descriptions []string) (string, error)
}

// DelegateFunc adapts a function to Delegate.
type DelegateFunc func(ctx context.Context, label string, descriptions []string) (string, error)

// Summarize implements Delegate.
func (f DelegateFunc) Summarize(ctx context.Context, label string, descriptions []string) (string, error) {
	return f(ctx, label, descriptions)
}

// Separator joins descriptions when no model is involved.
const Separator = "; "

// JoinDelegate is the offline delegate: it joins the descriptions verbatim.
type JoinDelegate struct{}

// Summarize implements Delegate.
func (JoinDelegate) Summarize(_ context.Context, _ string, descriptions []string) (string, error) {
	return strings.Join(descriptions, Separator), nil
}

// Memo caches delegate answers for the lifetime of one compilation run so the
// same (label, descriptions) pair is summarized once.
type Memo struct {
	next  Delegate
	mu    sync.Mutex
	cache map[string]string
}

// NewMemo wraps next with a per-run cache.
func NewMemo(next Delegate) *Memo {
	return &Memo{next: next, cache: make(map[string]string)}
}

// Summarize implements Delegate. Failures are not cached.
func (m *Memo) Summarize(ctx context.Context, label string, descriptions []string) (string, error) {
	key := memoKey(label, descriptions)
	m.mu.Lock()
	if text, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return text, nil
	}
	m.mu.Unlock()

	text, err := m.next.Summarize(ctx, label, descriptions)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.cache[key] = text
	m.mu.Unlock()
	return text, nil
}

// Hit reports whether the pair is already cached.
func (m *Memo) Hit(label string, descriptions []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cache[memoKey(label, descriptions)]
	return ok
}

func memoKey(label string, descriptions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%s", len(label), label)
	for _, d := range descriptions {
		fmt.Fprintf(&b, "|%d:%s", len(d), d)
	}
	return b.String()
}
