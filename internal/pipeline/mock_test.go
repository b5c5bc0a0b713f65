package pipeline

import (
	"context"
	"sync"

	"go.lorenzomilicia.dev/imgup/internal/uploader"
)

// MockGateway records uploads and answers with Respond
type MockGateway struct {
	mu      sync.Mutex
	Jobs    []uploader.Job
	Respond func(job uploader.Job) uploader.Result
	// Release, when set, blocks every upload until it is closed
	Release chan struct{}

	Selections   []string
	DeleteResult uploader.DeleteResult
	DeleteErr    error
}

func (m *MockGateway) Upload(ctx context.Context, job uploader.Job) uploader.Result {
	if m.Release != nil {
		<-m.Release
	}
	m.mu.Lock()
	m.Jobs = append(m.Jobs, job)
	m.mu.Unlock()
	if m.Respond == nil {
		return uploader.Result{OK: true, URL: "https://cdn.x/" + job.Name}
	}
	return m.Respond(job)
}

func (m *MockGateway) Delete(ctx context.Context, selection string) (uploader.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Selections = append(m.Selections, selection)
	return m.DeleteResult, m.DeleteErr
}

func (m *MockGateway) Uploads() []uploader.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uploader.Job(nil), m.Jobs...)
}

// MockNotifier keeps every notice
type MockNotifier struct {
	mu      sync.Mutex
	Notices []string
}

func (m *MockNotifier) Notify(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, msg)
}

func (m *MockNotifier) All() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Notices...)
}

// MockObserver keeps every transition
type MockObserver struct {
	mu          sync.Mutex
	Transitions []Transition
}

func (m *MockObserver) Observe(t Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions = append(m.Transitions, t)
}

func (m *MockObserver) States(jobID string) []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	var states []State
	for _, t := range m.Transitions {
		if t.JobID == jobID {
			states = append(states, t.State)
		}
	}
	return states
}

func (m *MockObserver) JobIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, t := range m.Transitions {
		if !seen[t.JobID] {
			seen[t.JobID] = true
			ids = append(ids, t.JobID)
		}
	}
	return ids
}
