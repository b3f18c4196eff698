package service

import (
	"time"

	"github.com/ZanzyTHEbar/volsearch/volsearch/escalation"
	"github.com/ZanzyTHEbar/volsearch/volsearch/indexing"

	"github.com/google/uuid"
)

// Status is the final state of one volume after a build run.
type Status string

const (
	StatusIndexed          Status = "indexed"
	StatusFallback         Status = "fallback"
	StatusSkipped          Status = "skipped"
	StatusFailed           Status = "failed"
	StatusRestartRequested Status = "restart_requested"
)

// VolumeResult reports how one volume was indexed.
type VolumeResult struct {
	Volume     string
	Status     Status
	Source     indexing.SourceKind // empty when nothing was indexed
	// Err is the failure, or for StatusFallback the reason bulk
	// enumeration was not used.
	Err        error
	Records    int64
	Malformed  int64
	Duplicates int64
	Duration   time.Duration
}

// Searchable reports whether the volume made it into the session.
func (r VolumeResult) Searchable() bool {
	return r.Status == StatusIndexed || r.Status == StatusFallback
}

// Report summarises one build run.
type Report struct {
	RunID            uuid.UUID
	Started          time.Time
	Duration         time.Duration
	RestartRequested bool
	// Escalation is the coordinator state at the end of the run.
	Escalation       escalation.State
	Prompts          int
	Volumes          []VolumeResult
}

// Result returns the result for volume.
func (r Report) Result(volume string) (VolumeResult, bool) {
	for _, v := range r.Volumes {
		if v.Volume == volume {
			return v, true
		}
	}
	return VolumeResult{}, false
}

// Records is the total number of indexed records.
func (r Report) Records() int64 {
	var n int64
	for _, v := range r.Volumes {
		n += v.Records
	}
	return n
}
