// Package documents manages the upload lifecycle: validation, storage,
// chunking, embedding, and indexing of user files.
package documents

// Document processing states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// validTransitions maps each state to the states it may move to. The two
// terminal states have no outgoing edges; a failed document is re-uploaded,
// not retried in place.
var validTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionsTo returns the states from which `to` is reachable. Status
// updates pass this to the store so the guard is enforced atomically with
// the write.
func TransitionsTo(to string) []string {
	var froms []string
	for from, nexts := range validTransitions {
		for _, next := range nexts {
			if next == to {
				froms = append(froms, from)
			}
		}
	}
	return froms
}
