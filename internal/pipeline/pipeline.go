// Package pipeline defines the hiring stages, job statuses and the linear
// stage graph candidates normally travel through.
package pipeline

// Stage is a candidate's position in the hiring pipeline.
type Stage string

const (
	StageApplied  Stage = "applied"
	StageScreen   Stage = "screen"
	StageTech     Stage = "tech"
	StageOffer    Stage = "offer"
	StageHired    Stage = "hired"
	StageRejected Stage = "rejected"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageApplied, StageScreen, StageTech, StageOffer, StageHired, StageRejected}

// Valid reports enum membership.
func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, known := range Stages {
		if s == known {
			return i
		}
	}
	return -1
}

// Terminal stages have no outgoing transitions.
func (s Stage) Terminal() bool {
	return s == StageHired || s == StageRejected
}

var transitions = map[Stage][]Stage{
	StageApplied:  {StageScreen},
	StageScreen:   {StageTech, StageRejected},
	StageTech:     {StageOffer, StageRejected},
	StageOffer:    {StageHired, StageRejected},
	StageHired:    {},
	StageRejected: {},
}

// Next returns the stages reachable from s in one step of the linear graph.
func Next(s Stage) []Stage {
	return transitions[s]
}

// CanTransition reports whether from→to is an edge of the linear graph.
// Staying in place is always allowed.
func CanTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a job posting.
type JobStatus string

const (
	JobActive   JobStatus = "active"
	JobArchived JobStatus = "archived"
)

// JobStatuses lists every job status.
var JobStatuses = []JobStatus{JobActive, JobArchived}

// Valid reports enum membership.
func (s JobStatus) Valid() bool {
	return s == JobActive || s == JobArchived
}
