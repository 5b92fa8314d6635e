package ice

import "github.com/pkg/errors"

// Sentinel errors returned by the Agent facade. Callers compare against
// these with errors.Is; internal code wraps them with errors.Wrap to add
// diagnostic context without losing the sentinel identity.
var (
	ErrUnknownStream        = errors.New("ice: unknown stream")
	ErrUnknownComponent     = errors.New("ice: unknown component")
	ErrClosed               = errors.New("ice: agent closed")
	ErrNoLocalCandidates    = errors.New("ice: no local candidates gathered")
	ErrInvalidCandidate     = errors.New("ice: invalid candidate")
	ErrGatheringInProgress  = errors.New("ice: gathering already in progress")
	ErrNominationInProgress = errors.New("ice: nomination already in progress")
	ErrNoSelectedPair       = errors.New("ice: component has no selected pair")
	ErrInvalidCredentials   = errors.New("ice: ufrag/password outside the spec's length bounds")
)
