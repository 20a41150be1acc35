package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending   State = "pending"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress carries the latest parsed values from the downloader
// progress stream.
type Progress struct {
	Percentage string  `json:"percentage"`
	Speed      float64 `json:"speed"`
	ETA        float64 `json:"eta"`
}

// Job is a single download request. The queue manager owns its lifecycle,
// everyone else reads value snapshots.
type Job struct {
	id      string
	url     string
	preset  string
	format  string
	extract bool
	outDir  string

	mu          sync.Mutex
	state       State
	progress    Progress
	title       string
	savedPath   string
	errMsg      string
	cancelAsked bool
	createdAt   time.Time
	finishedAt  time.Time
}

// Snapshot is a race-free value copy of a Job, also used for
// session persistence.
type Snapshot struct {
	Id           string    `json:"id"`
	URL          string    `json:"url"`
	Preset       string    `json:"preset"`
	Format       string    `json:"format"`
	ExtractAudio bool      `json:"extract_audio"`
	OutputDir    string    `json:"output_dir"`
	State        State     `json:"state"`
	Progress     Progress  `json:"progress"`
	Title        string    `json:"title,omitempty"`
	SavedPath    string    `json:"saved_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}

type Request struct {
	URL          string
	Preset       string
	Format       string
	ExtractAudio bool
	OutputDir    string
}

func New(req Request) *Job {
	return &Job{
		id:        uuid.NewString(),
		url:       req.URL,
		preset:    req.Preset,
		format:    req.Format,
		extract:   req.ExtractAudio,
		outDir:    req.OutputDir,
		state:     StatePending,
		createdAt: time.Now(),
	}
}

func (j *Job) Id() string         { return j.id }
func (j *Job) URL() string        { return j.url }
func (j *Job) Format() string     { return j.format }
func (j *Job) ExtractAudio() bool { return j.extract }
func (j *Job) OutputDir() string  { return j.outDir }

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.progress = p
}

func (j *Job) SetTitle(t string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.title = t
}

func (j *Job) SetSavedPath(p string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.savedPath = p
}

func (j *Job) SavedPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.savedPath
}

// MarkActive promotes a pending job. Returns false if the job already
// left the pending state.
func (j *Job) MarkActive() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StatePending {
		return false
	}
	j.state = StateActive
	return true
}

// RequestCancel flags the job so a racing completion can never win
// over a cancellation.
func (j *Job) RequestCancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelAsked = true
}

func (j *Job) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelAsked
}

// MarkCompleted finishes the job successfully. If a cancellation was
// requested in the meantime the job lands in StateCancelled instead.
func (j *Job) MarkCompleted(savedPath string) State {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return j.state
	}
	if j.cancelAsked {
		j.state = StateCancelled
	} else {
		j.state = StateCompleted
		j.savedPath = savedPath
	}
	j.finishedAt = time.Now()
	return j.state
}

func (j *Job) MarkFailed(msg string) State {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return j.state
	}
	if j.cancelAsked {
		j.state = StateCancelled
	} else {
		j.state = StateFailed
		j.errMsg = msg
	}
	j.finishedAt = time.Now()
	return j.state
}

func (j *Job) MarkCancelled() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return j.state
	}
	j.state = StateCancelled
	j.finishedAt = time.Now()
	return j.state
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		Id:           j.id,
		URL:          j.url,
		Preset:       j.preset,
		Format:       j.format,
		ExtractAudio: j.extract,
		OutputDir:    j.outDir,
		State:        j.state,
		Progress:     j.progress,
		Title:        j.title,
		SavedPath:    j.savedPath,
		Error:        j.errMsg,
		CreatedAt:    j.createdAt,
		FinishedAt:   j.finishedAt,
	}
}

// Restore rebuilds a job from a persisted snapshot. Non-terminal
// snapshots come back as pending so they can be resubmitted.
func Restore(s Snapshot) *Job {
	state := s.State
	if !state.Terminal() {
		state = StatePending
	}
	return &Job{
		id:         s.Id,
		url:        s.URL,
		preset:     s.Preset,
		format:     s.Format,
		extract:    s.ExtractAudio,
		outDir:     s.OutputDir,
		state:      state,
		progress:   s.Progress,
		title:      s.Title,
		savedPath:  s.SavedPath,
		errMsg:     s.Error,
		createdAt:  s.CreatedAt,
		finishedAt: s.FinishedAt,
	}
}
