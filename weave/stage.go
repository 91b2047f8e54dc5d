package weave

import "fmt"

// Stage is a state of the bootstrap sequence. Stages advance strictly in
// declaration order; StageFailed is terminal.
type Stage int

const (
	StageInit Stage = iota
	StageIdentityResolved
	StageNodeDiscovered
	StageCollectionsListed
	StageMetaLoaded
	StageKeysLoaded
	StageReady
	StageFailed
)

var stageNames = [...]string{
	StageInit:              "INIT",
	StageIdentityResolved:  "IDENTITY_RESOLVED",
	StageNodeDiscovered:    "NODE_DISCOVERED",
	StageCollectionsListed: "COLLECTIONS_LISTED",
	StageMetaLoaded:        "META_LOADED",
	StageKeysLoaded:        "KEYS_LOADED",
	StageReady:             "READY",
	StageFailed:            "FAILED",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError reports the bootstrap stage that could not be reached and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
