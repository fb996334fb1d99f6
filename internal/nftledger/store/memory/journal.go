package memory

// journalEntry undoes one modification of the state.
type journalEntry func(st *state)

// journal lists the modifications applied inside one Atomic call so they
// can be reverted when the call fails.
type journal struct {
	entries []journalEntry
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes the entries newest first.
func (j *journal) revert(st *state) {
	for i := len(j.entries) - 1; i >= 0; i-- {
		j.entries[i](st)
	}
	j.entries = j.entries[:0]
}
