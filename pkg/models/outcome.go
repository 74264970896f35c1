package models

// StatusCodeSuccess is the ledger's success sentinel for transaction status.
const StatusCodeSuccess = "Success"

// OutcomeStatus is the terminal result class of a posting operation.
type OutcomeStatus int

const (
	// OutcomeSuccess means the watched transaction reached its target state.
	OutcomeSuccess OutcomeStatus = iota
	// OutcomeFailure means the ledger reported a non-success status code.
	OutcomeFailure
	// OutcomeUndetermined means no decisive signal was obtained: no node
	// reachable, signer declined, or the flow was cancelled.
	OutcomeUndetermined
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeUndetermined:
		return "undetermined"
	}
	return "unknown"
}

// Outcome is the terminal result of posting a transaction. Every posting
// operation returns one; callers must not drop it.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	// Code is the ledger status code for failures ("Success" on success).
	Code string `json:"code,omitempty"`
	// Hash identifies the transaction the outcome refers to.
	Hash string `json:"hash,omitempty"`
	// Detail is a human-readable note for undetermined outcomes.
	Detail string `json:"detail,omitempty"`
}

// Succeeded reports whether the outcome is terminal success.
func (o Outcome) Succeeded() bool { return o.Status == OutcomeSuccess }

// SuccessOutcome builds a success outcome for hash.
func SuccessOutcome(hash string) Outcome {
	return Outcome{Status: OutcomeSuccess, Code: StatusCodeSuccess, Hash: hash}
}

// FailureOutcome builds a failure outcome carrying the ledger status code.
func FailureOutcome(hash, code string) Outcome {
	return Outcome{Status: OutcomeFailure, Code: code, Hash: hash}
}

// UndeterminedOutcome builds an undetermined outcome with a reason.
func UndeterminedOutcome(hash, detail string) Outcome {
	return Outcome{Status: OutcomeUndetermined, Hash: hash, Detail: detail}
}
