package models

import "time"

// Stage is a promotion gate stage. A candidate enters at StageCandidate
// and must clear R1..R4 in order; there is no skipping.
type Stage int

const (
	StageCandidate Stage = iota
	StageR1Research
	StageR2Runtime
	StageR3Paper
	StageR4Live
)

var stageNames = map[Stage]string{
	StageCandidate:  "candidate",
	StageR1Research: "R1-research-validated",
	StageR2Runtime:  "R2-runtime-integrated",
	StageR3Paper:    "R3-paper-validated",
	StageR4Live:     "R4-live-validated",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// Prev returns the stage a failed candidate falls back to.
func (s Stage) Prev() Stage {
	if s <= StageCandidate {
		return StageCandidate
	}
	return s - 1
}

// Verdict is the outcome of evaluating one stage gate.
type Verdict string

const (
	VerdictPass         Verdict = "pass"
	VerdictFail         Verdict = "fail"
	VerdictInsufficient Verdict = "insufficient-evidence"
)

// EvidenceKind names one artifact of the fixed evidence bundle. Items
// are individually present or absent, never partially substitutable.
type EvidenceKind string

const (
	EvidenceReproducibility EvidenceKind = "reproducibility"
	EvidenceFoldResults     EvidenceKind = "fold_results"
	EvidenceAggregate       EvidenceKind = "aggregate_summary"
	EvidenceGateCheck       EvidenceKind = "gate_check"
	EvidenceStability       EvidenceKind = "stability_test"
	EvidenceDriftBaselines  EvidenceKind = "drift_baselines"
	EvidenceModelDigest     EvidenceKind = "model_digest"
)

// EvidenceItem records presence and the content address of one artifact.
type EvidenceItem struct {
	Present bool   `json:"present"`
	Digest  string `json:"digest,omitempty"`
	Ref     string `json:"ref,omitempty"`
}

// EvidenceBundle is the fixed artifact set required before a stage
// transition.
type EvidenceBundle struct {
	RunID   string                        `json:"run_id"`
	Version int                           `json:"version"`
	Items   map[EvidenceKind]EvidenceItem `json:"items"`
}

// Has reports whether the named artifact is present.
func (b *EvidenceBundle) Has(k EvidenceKind) bool {
	if b == nil {
		return false
	}
	it, ok := b.Items[k]
	return ok && it.Present
}

// Missing returns the subset of required kinds absent from the bundle.
func (b *EvidenceBundle) MissingOf(required []EvidenceKind) []EvidenceKind {
	var out []EvidenceKind
	for _, k := range required {
		if !b.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// GateDecision is the append-only record of one gate evaluation. It
// references the evidence bundle version but never mutates it.
type GateDecision struct {
	RunID        string    `json:"run_id"`
	CandidateID  string    `json:"candidate_id"`
	Stage        Stage     `json:"stage"`
	StageName    string    `json:"stage_name"`
	Verdict      Verdict   `json:"verdict"`
	NoGo         bool      `json:"no_go"`
	Reviewer     string    `json:"reviewer"`
	DecidedAt    time.Time `json:"decided_at"`
	Rationale    string    `json:"rationale"`
	Reasons      []Reason  `json:"reasons,omitempty"`
	BundleDigest string    `json:"bundle_digest"`
}
