package models

// CandidateKind tags the two candidate families. They share the gate
// interface but carry family-specific evidence requirements.
type CandidateKind string

const (
	RuleCandidate    CandidateKind = "rule"
	LearnedCandidate CandidateKind = "learned"
)

// Candidate is a strategy or model moving through the promotion gates.
// The registry owns the authoritative copy; the core only hands it
// verdicts.
type Candidate struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Kind  CandidateKind `json:"kind"`
	Stage Stage         `json:"stage"`

	// Rejected marks a permanent no-go. A rejected candidate cannot
	// re-enter without a full retraining cycle.
	Rejected     bool     `json:"rejected"`
	RejectReason []Reason `json:"reject_reason,omitempty"`

	// ModelDigest is set for learned candidates only.
	ModelDigest string `json:"model_digest,omitempty"`
}

// Promotable reports whether the candidate may be evaluated for the
// given target stage.
func (c *Candidate) Promotable(target Stage) bool {
	if c.Rejected {
		return false
	}
	return target == c.Stage+1
}
