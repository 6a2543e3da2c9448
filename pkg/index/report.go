package index

// Report summarises an IndexBatch call. Attempted always equals Succeeded
// plus the number of failures.
type Report struct {
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failed    []Failure `json:"failed"`

	// IDs are the identifiers of the stored documents in input order,
	// including generated ones.
	IDs []string `json:"ids,omitempty"`
}

// Failure is a document the batch could not store.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// OK reports whether every attempted document was stored.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}
