package delivery

import "sort"

// MessageFeed merges polled pages into one ordered view. Overlapping or
// repeated polls are idempotent.
type MessageFeed struct {
	seen     map[int64]struct{}
	messages []Message
	cursor   int64
}

// NewMessageFeed creates an empty feed
func NewMessageFeed() *MessageFeed {
	return &MessageFeed{seen: make(map[int64]struct{})}
}

// Merge adds a page and returns how many messages were new
func (f *MessageFeed) Merge(page []Message) int {
	added := 0
	for _, m := range page {
		if _, ok := f.seen[m.ID]; ok {
			continue
		}
		f.seen[m.ID] = struct{}{}
		f.messages = append(f.messages, m)
		if m.ID > f.cursor {
			f.cursor = m.ID
		}
		added++
	}
	if added > 0 {
		sort.Slice(f.messages, func(i, j int) bool { return f.messages[i].ID < f.messages[j].ID })
	}
	return added
}

// Cursor is the id to pass as "after" on the next poll
func (f *MessageFeed) Cursor() int64 {
	return f.cursor
}

// Messages returns the merged messages in send order
func (f *MessageFeed) Messages() []Message {
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Len returns the number of distinct messages
func (f *MessageFeed) Len() int {
	return len(f.messages)
}
