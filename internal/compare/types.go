package compare

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/jonathan/tagcompare/internal/severity"
)

// Status is the lifecycle state of a comparison job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Mode selects what each unit compares.
type Mode string

const (
	// ModeConfigs compares every pair of configs in the canonical build.
	ModeConfigs Mode = "configs"
	// ModeReference compares each config of a run build with the same config
	// in the canonical build.
	ModeReference Mode = "reference"
)

// Score is a dissimilarity score that encodes the invalid sentinel as JSON
// null.
type Score float64

// Invalid reports whether s is the invalid sentinel.
func (s Score) Invalid() bool {
	return imaging.IsInvalid(float64(s))
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	if s.Invalid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Score(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// Unit is one (campaign, size, type) combination.
type Unit struct {
	Campaign string `json:"campaign"`
	Size     string `json:"size"`
	Type     string `json:"type"`
}

// PairResult is the outcome of comparing two artifacts of a unit.
type PairResult struct {
	A     string         `json:"a"`
	B     string         `json:"b"`
	Score Score          `json:"score"`
	Level severity.Level `json:"level"`
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Unit
	Score       Score          `json:"score"`
	Level       severity.Level `json:"level"`
	Pairs       []PairResult   `json:"pairs,omitempty"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
	Error       string         `json:"error,omitempty"`
	Elapsed     time.Duration  `json:"elapsed"`
}

// Job is one comparison batch.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Group       string     `json:"group"`
	Build       string     `json:"build"`
	Mode        Mode       `json:"mode"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result"`
	Error       string     `json:"error,omitempty"`

	mu    sync.Mutex
	units []UnitResult
}

func newJob(opts Options) *Job {
	return &Job{
		ID:        uuid.New(),
		Group:     opts.Group,
		Build:     opts.Build,
		Mode:      opts.Mode,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Result:    NewResult(),
	}
}

func (j *Job) start() {
	now := time.Now()
	j.mu.Lock()
	j.Status = StatusRunning
	j.StartedAt = &now
	j.mu.Unlock()
}

func (j *Job) finish(err error) {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CompletedAt = &now
	if err != nil {
		j.Status = StatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = StatusCompleted
}

func (j *Job) record(u UnitResult) {
	j.Result.Add(u.Level)
	j.mu.Lock()
	j.units = append(j.units, u)
	j.mu.Unlock()
}

// Units returns the results of every completed unit, in completion order.
func (j *Job) Units() []UnitResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]UnitResult, len(j.units))
	copy(out, j.units)
	return out
}

// Elapsed returns how long the job ran, or zero if it has not finished.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
