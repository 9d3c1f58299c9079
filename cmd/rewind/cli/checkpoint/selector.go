package checkpoint

import "time"

// Selection is the result of matching a conversation point against the known
// records. Match is nil when no record is at-or-after the target; Latest and
// HasOlder let callers offer a "restore oldest known state" option distinct
// from the timestamp match.
type Selection struct {
	// Match is the earliest record captured at or after the target, or nil.
	Match *Record

	// Latest is the most recent record overall, or nil when none are known.
	Latest *Record

	// HasOlder reports whether more than one record is known.
	HasOlder bool
}

// Found reports whether a timestamp-matched record exists.
func (s Selection) Found() bool {
	return s.Match != nil
}

// Select picks the checkpoint that best corresponds to a target point in
// conversation history. Records are considered across every session, because
// a branch may target a session that itself branched from another.
//
// A checkpoint is captured at the start of processing a turn, so the correct
// checkpoint for "state as of the start of message N" is the earliest capture
// whose time is not before that message's own timestamp. When no record
// qualifies, Match is nil - falling back to the most recent overall could
// apply an unrelated, later state, so that decision is left to the caller.
//
// Ties on CreatedAt break by ascending ID, which is stable and follows
// insertion order within a session.
func Select(records []Record, target time.Time) Selection {
	var sel Selection
	sel.HasOlder = len(records) > 1

	for i := range records {
		rec := &records[i]

		if sel.Latest == nil || after(rec, sel.Latest) {
			sel.Latest = rec
		}

		if rec.CreatedAt.Before(target) {
			continue
		}
		if sel.Match == nil || after(sel.Match, rec) {
			sel.Match = rec
		}
	}

	return sel
}

// after reports whether a sorts after b by (CreatedAt, ID).
func after(a, b *Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
