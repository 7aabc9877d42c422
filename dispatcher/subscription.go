package dispatcher

type Subscription interface {
	Unsubscribe()
}

type subs struct {
	bus     *Bus
	msgType string
	entry   *entry
}

func (s *subs) Unsubscribe() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries[s.msgType]
	kept := make([]*entry, 0, len(entries))

	for _, e := range entries {
		if e != s.entry {
			kept = append(kept, e)
		}
	}

	b.entries[s.msgType] = kept
}
