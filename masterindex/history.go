package masterindex

import "time"

// appendHistory records a committed mutation with a snapshot of the
// metadata, evicting the oldest entries beyond the configured cap. Callers
// must hold i.mu; persistence is the caller's responsibility.
func (i *Index) appendHistory(name, operation string, meta CollectionMetadata) {
	entry := HistoryEntry{
		Operation: operation,
		Timestamp: NewTimestamp(time.Now()),
		Snapshot:  meta.Clone(),
	}

	entries := append(i.state.ModificationHistory[name], entry)
	if len(entries) > i.historyLimit {
		entries = entries[len(entries)-i.historyLimit:]
	}
	i.state.ModificationHistory[name] = entries
}
