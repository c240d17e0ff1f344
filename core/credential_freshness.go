package core

import "time"

const (
	DefaultCredentialSafetyMargin = 300 * time.Second
)

// CredentialDecision is the outcome of evaluating a store load.
type CredentialDecision string

const (
	DecisionUseCached       CredentialDecision = "use_cached"
	DecisionFetchAbsent     CredentialDecision = "fetch_absent"
	DecisionFetchLoadFailed CredentialDecision = "fetch_load_failed"
	DecisionFetchStale      CredentialDecision = "fetch_stale"
	DecisionFetchInvalid    CredentialDecision = "fetch_invalid"
)

// RequiresFetch reports whether the decision leads to a remote fetch.
func (d CredentialDecision) RequiresFetch() bool {
	return d != DecisionUseCached
}

// ClassifyLoad maps the result of CredentialStore.Load to a decision.
// Any load error that is not an absent slot counts as a failed load; both
// lead to a fetch.
func ClassifyLoad(now time.Time, credential Credential, loadErr error) CredentialDecision {
	if loadErr != nil {
		if IsCredentialAbsent(loadErr) {
			return DecisionFetchAbsent
		}
		return DecisionFetchLoadFailed
	}
	if !credential.IsStructurallyValid() {
		return DecisionFetchInvalid
	}
	if !credential.ExpiresAt.After(now) {
		return DecisionFetchStale
	}
	return DecisionUseCached
}
