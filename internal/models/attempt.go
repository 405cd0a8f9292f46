package models

import "time"

// Outcome classifies the result of a single authentication attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeAuthFailure     Outcome = "auth_failure"
	OutcomeConnectionError Outcome = "connection_error"
	OutcomeTimeout         Outcome = "timeout"
)

// Retryable reports whether the outcome is transient and worth retrying.
// Timeouts are treated the same as connection errors for retry purposes.
func (o Outcome) Retryable() bool {
	return o == OutcomeConnectionError || o == OutcomeTimeout
}

// CredentialPair is one username/password candidate. Pairs are value
// objects; equality is by content. Index is the pair's position in the
// originating candidate stream.
type CredentialPair struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Index    int64  `json:"index"`
}

// AttemptResult records the classified outcome of testing one pair.
type AttemptResult struct {
	Pair    CredentialPair `json:"pair"`
	Outcome Outcome        `json:"outcome"`
	Message string         `json:"message,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// FoundCredential is a confirmed working credential.
type FoundCredential struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Target   string    `json:"target"`
	FoundAt  time.Time `json:"found_at"`
}

// AttackStats aggregates attempt counters across all workers.
type AttackStats struct {
	TotalAttempts     int64     `json:"total_attempts"`
	SuccessCount      int64     `json:"success_count"`
	AuthFailures      int64     `json:"auth_failures"`
	ConnectionErrors  int64     `json:"connection_errors"`
	CompletedChunks   int       `json:"completed_chunks"`
	OutstandingChunks int       `json:"outstanding_chunks"`
	StartedAt         time.Time `json:"started_at"`
}
