package organize

import (
	"fmt"
	"math"
	"sync"
)

// JobStatus is the lifecycle state of an organize job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// ResultSummary carries the counts attached to a finished job.
type ResultSummary struct {
	TotalConversations int    `json:"total_conversations"`
	TotalCategories    int    `json:"total_categories,omitempty"`
	TotalGroups        int    `json:"total_groups,omitempty"`
	GeneratedAt        string `json:"generated_at"`
	OrganizeMode       string `json:"organize_mode"`
}

// JobResult is the terminal payload of a successful job: exactly one of
// Categories or TimePeriods is populated, matching the job's mode.
type JobResult struct {
	Summary     ResultSummary                   `json:"summary"`
	Categories  map[string][]CategorizedSession `json:"categories,omitempty"`
	TimePeriods *TimePeriods                    `json:"time_periods,omitempty"`
}

// JobRecord tracks one job from submission to its terminal state.
// Invariants: done implies Result != nil and Error empty; error implies Error
// non-empty; Progress and Processed never decrease while processing.
type JobRecord struct {
	Status    JobStatus  `json:"status"`
	Progress  int        `json:"progress"`
	Processed int        `json:"processed"`
	Total     int        `json:"total"`
	Message   string     `json:"message"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// JobStore is the process-wide job table: inserted into by submitters,
// mutated by each job's owning runner, read by arbitrarily many pollers.
// Mutations against an unknown id are silent no-ops so a late progress update
// can never crash a worker, even in deployments that evict records.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobRecord
}

// NewJobStore builds an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*JobRecord)}
}

// Create registers a fresh job in the processing state. It fails when the id
// is already present.
func (s *JobStore) Create(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("job %q already exists", id)
	}
	s.jobs[id] = &JobRecord{
		Status:  JobProcessing,
		Total:   1,
		Message: "Queued",
	}
	return nil
}

// Get returns a snapshot copy of the record. The Result pointer is shared but
// immutable once set.
func (s *JobStore) Get(id string) (JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, false
	}
	return *job, true
}

// UpdateProgress records a progress report. Processed is monotone: a report
// lower than the current value keeps the current value. Progress is the
// rounded percentage of processed over total, clamped to [0,100].
func (s *JobStore) UpdateProgress(id string, processed, total int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	if processed < job.Processed {
		processed = job.Processed
	}
	if total < 1 {
		total = 1
	}
	pct := int(math.Round(float64(processed) / float64(total) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	job.Processed = processed
	job.Total = total
	job.Progress = pct
	job.Message = message
}

// Finish moves the job to done with its result.
func (s *JobStore) Finish(id string, result *JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = JobDone
	job.Result = result
	job.Progress = 100
	job.Message = "Completed"
}

// Fail moves the job to error carrying the error's text.
func (s *JobStore) Fail(id string, jobErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = JobError
	job.Error = fmt.Sprintf("%v", jobErr)
	job.Message = "Failed"
}
