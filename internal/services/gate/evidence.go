package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"QuantGate/internal/domain/models"
)

// baseEvidence is required of every candidate at every stage. The set
// is fixed: artifacts are individually present or absent, never
// substitutable for one another.
var baseEvidence = []models.EvidenceKind{
	models.EvidenceReproducibility,
	models.EvidenceFoldResults,
	models.EvidenceAggregate,
	models.EvidenceGateCheck,
	models.EvidenceDriftBaselines,
}

// learnedEvidence is required of learned candidates in addition to the
// base set.
var learnedEvidence = []models.EvidenceKind{
	models.EvidenceStability,
	models.EvidenceModelDigest,
}

// RequiredEvidence returns the artifact kinds a candidate of the given
// kind must present before any stage transition is evaluated.
func RequiredEvidence(kind models.CandidateKind) []models.EvidenceKind {
	out := make([]models.EvidenceKind, 0, len(baseEvidence)+len(learnedEvidence))
	out = append(out, baseEvidence...)
	if kind == models.LearnedCandidate {
		out = append(out, learnedEvidence...)
	}
	return out
}

// BundleDigest content-addresses an evidence bundle. Decisions record
// this digest so later tampering is detectable.
func BundleDigest(b *models.EvidenceBundle) string {
	if b == nil {
		return ""
	}
	raw, _ := json.Marshal(b)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
