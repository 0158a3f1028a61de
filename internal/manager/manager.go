// Package manager implements the process-wide Exchange registry: a single
// place strategies and the console reporter look up a connected Exchange
// by name, and the one Start/Stop call that brings every registered
// exchange up or down together.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alejandrodnm/polybot/internal/exchange"
)

// Manager owns every registered Exchange and the output directory tree
// their CSV/SQLite artifacts are written under.
type Manager struct {
	mu              sync.RWMutex
	exchanges       map[string]*exchange.Exchange
	order           []string
	outputDirectory string
	startedAt       time.Time
}

// New creates an empty Manager rooted at outputDirectory. The directory is
// created if it does not already exist.
func New(outputDirectory string) (*Manager, error) {
	if outputDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		outputDirectory = filepath.Join(wd, "output")
	}
	if err := os.MkdirAll(outputDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("manager: creating output directory: %w", err)
	}
	return &Manager{
		exchanges:       make(map[string]*exchange.Exchange),
		outputDirectory: outputDirectory,
	}, nil
}

// OutputDirectory returns the manager's root output directory.
func (m *Manager) OutputDirectory() string {
	return m.outputDirectory
}

// ExchangeOutputDirectory returns outputDirectory/<name>, creating it if
// necessary, for use as that exchange's own Config.OutputDirectory.
func (m *Manager) ExchangeOutputDirectory(name string) (string, error) {
	dir := filepath.Join(m.outputDirectory, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("manager: creating exchange output directory: %w", err)
	}
	return dir, nil
}

// Register adds a new Exchange under name, built from adapter and cfg.
// Registering the same name twice is an error: names must be unique.
func (m *Manager) Register(name string, adapter exchange.Adapter, cfg exchange.Config) (*exchange.Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.exchanges[name]; exists {
		return nil, fmt.Errorf("manager: exchange %q already registered", name)
	}
	if cfg.OutputDirectory == "" {
		cfg.OutputDirectory = filepath.Join(m.outputDirectory, name)
		if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
			return nil, fmt.Errorf("manager: creating exchange output directory: %w", err)
		}
	}

	ex := exchange.New(name, adapter, cfg)
	m.exchanges[name] = ex
	m.order = append(m.order, name)
	return ex, nil
}

// Exchange looks up a previously registered Exchange by name.
func (m *Manager) Exchange(name string) (*exchange.Exchange, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ex, ok := m.exchanges[name]
	return ex, ok
}

// Each calls fn for every registered exchange, in registration order.
func (m *Manager) Each(fn func(name string, ex *exchange.Exchange)) {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	exchanges := make(map[string]*exchange.Exchange, len(names))
	for k, v := range m.exchanges {
		exchanges[k] = v
	}
	m.mu.RUnlock()

	for _, name := range names {
		fn(name, exchanges[name])
	}
}

// StartedAt returns when Start first ran, the zero time if it never has.
func (m *Manager) StartedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startedAt
}

// Start connects every registered exchange, one after another. It blocks
// until each Exchange.Connect call has run its connect protocol to
// completion; the pollers/watchdog each launches keep running in the
// background afterward. Returns the first connect
// error encountered; exchanges registered before the failing one remain
// connected.
func (m *Manager) Start(ctx context.Context, keepPendingOrders bool) error {
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	var firstErr error
	m.Each(func(name string, ex *exchange.Exchange) {
		if firstErr != nil {
			return
		}
		slog.Info("manager: connecting exchange", "exchange", name)
		if err := ex.Connect(ctx, keepPendingOrders); err != nil {
			firstErr = fmt.Errorf("manager: connecting %q: %w", name, err)
		}
	})
	return firstErr
}

// Stop disconnects and tears down every registered exchange.
func (m *Manager) Stop() {
	m.Each(func(name string, ex *exchange.Exchange) {
		slog.Info("manager: stopping exchange", "exchange", name)
		ex.Stop()
	})
}
