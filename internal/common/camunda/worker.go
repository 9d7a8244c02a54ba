// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"agentic-assistant/internal/common/config"
	"agentic-assistant/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// WorkerSettings are the effective job worker options for one task type.
type WorkerSettings struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

// ResolveSettings fills per-worker gaps from the broker-wide defaults.
func ResolveSettings(wcfg config.WorkerConfig, defaults config.CamundaConfig) WorkerSettings {
	s := WorkerSettings{
		Enabled:       wcfg.Enabled,
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       time.Duration(wcfg.Timeout) * time.Millisecond,
	}
	if s.MaxJobsActive <= 0 {
		s.MaxJobsActive = defaults.MaxJobsActive
	}
	if s.MaxJobsActive <= 0 {
		s.MaxJobsActive = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = time.Duration(defaults.Timeout) * time.Millisecond
	}
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Minute
	}
	return s
}

// Manager opens job workers against one broker and closes them together.
type Manager struct {
	client   zbc.Client
	defaults config.CamundaConfig
	logger   logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewManager(client zbc.Client, defaults config.CamundaConfig, log logger.Logger) *Manager {
	return &Manager{
		client:   client,
		defaults: defaults,
		logger:   log.WithFields(map[string]interface{}{"component": "worker-manager"}),
		workers:  make(map[string]worker.JobWorker),
	}
}

// Register opens a job worker for taskType unless it is disabled. It reports whether one was opened.
func (m *Manager) Register(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	settings := ResolveSettings(wcfg, m.defaults)
	if !settings.Enabled {
		m.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[taskType]; exists {
		m.logger.Warn("worker already registered", map[string]interface{}{"taskType": taskType})
		return false
	}

	m.workers[taskType] = m.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(settings.MaxJobsActive).
		Timeout(settings.Timeout).
		Open()

	m.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": settings.MaxJobsActive,
		"timeout":       settings.Timeout.String(),
	})
	return true
}

// Stop closes every worker, waiting for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for taskType, w := range m.workers {
		w.Close()
		w.AwaitClose()
		m.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	m.workers = make(map[string]worker.JobWorker)
}
