package chat

import "sync"

// Transcript is the ordered message list shown for a conversation, oldest
// first. Ids are unique; appending a message whose id is already present is
// a no-op for that message.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	ids      map[string]struct{}

	listeners []func([]Message)
}

func NewTranscript() *Transcript {
	return &Transcript{ids: make(map[string]struct{})}
}

// OnChange registers fn to receive a snapshot after every mutation. fn runs
// on the mutating goroutine, outside the lock.
func (t *Transcript) OnChange(fn func([]Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Append adds msgs in order, skipping ids that are already present.
func (t *Transcript) Append(msgs ...Message) {
	t.mutate(func() bool {
		changed := false
		for _, m := range msgs {
			if t.appendLocked(m) {
				changed = true
			}
		}
		return changed
	})
}

// Replace swaps the whole list in one step, keeping the first occurrence of
// any repeated id.
func (t *Transcript) Replace(msgs []Message) {
	t.mutate(func() bool {
		t.messages = make([]Message, 0, len(msgs))
		t.ids = make(map[string]struct{}, len(msgs))
		for _, m := range msgs {
			t.appendLocked(m)
		}
		return true
	})
}

// SetLoader removes any existing loader and appends loader at the end.
func (t *Transcript) SetLoader(loader Message) {
	loader.ID = LoaderID
	t.mutate(func() bool {
		t.removeLoaderLocked()
		t.appendLocked(loader)
		return true
	})
}

func (t *Transcript) RemoveLoader() {
	t.mutate(t.removeLoaderLocked)
}

// ReplaceLoader removes any loader and appends msgs, as one mutation.
func (t *Transcript) ReplaceLoader(msgs ...Message) {
	t.mutate(func() bool {
		changed := t.removeLoaderLocked()
		for _, m := range msgs {
			if t.appendLocked(m) {
				changed = true
			}
		}
		return changed
	})
}

func (t *Transcript) HasLoader() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[LoaderID]
	return ok
}

func (t *Transcript) mutate(fn func() bool) {
	t.mu.Lock()
	changed := fn()
	var snapshot []Message
	var listeners []func([]Message)
	if changed && len(t.listeners) > 0 {
		snapshot = t.snapshotLocked()
		listeners = append(listeners, t.listeners...)
	}
	t.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (t *Transcript) appendLocked(m Message) bool {
	if _, exists := t.ids[m.ID]; exists {
		return false
	}
	t.ids[m.ID] = struct{}{}
	t.messages = append(t.messages, m)
	return true
}

func (t *Transcript) removeLoaderLocked() bool {
	if _, ok := t.ids[LoaderID]; !ok {
		return false
	}
	for i, m := range t.messages {
		if m.ID == LoaderID {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			break
		}
	}
	delete(t.ids, LoaderID)
	return true
}

func (t *Transcript) snapshotLocked() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// MergeUnique appends next to acc, dropping any message whose id already
// appeared earlier. The first occurrence wins and order is preserved.
func MergeUnique(acc, next []Message) []Message {
	seen := make(map[string]struct{}, len(acc)+len(next))
	out := make([]Message, 0, len(acc)+len(next))
	for _, group := range [][]Message{acc, next} {
		for _, m := range group {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
