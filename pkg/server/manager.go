package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/nodesync/pkg/snapshot"
	"github.com/vango-dev/nodesync/pkg/state"
)

// Manager owns the live UIs.
type Manager struct {
	uis    map[string]*UI
	mu     sync.RWMutex
	config *Config
	logger *slog.Logger

	closed      bool
	done        chan struct{}
	cleanupDone chan struct{}
}

// ManagerStats is a point-in-time view of the manager.
type ManagerStats struct {
	Active int
	MaxUIs int
}

// NewManager creates a manager and starts its idle cleanup loop.
func NewManager(config *Config) *Manager {
	config = config.withDefaults()
	m := &Manager{
		uis:         make(map[string]*UI),
		config:      config,
		logger:      config.Logger.With("component", "ui_manager"),
		done:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create builds a new UI using the configured factory.
func (m *Manager) Create(ctx context.Context) (*UI, error) {
	tree := state.NewTree()
	if m.config.Factory != nil {
		if err := m.config.Factory(tree); err != nil {
			return nil, NewUIError("", "create", err)
		}
	}
	u, _, err := m.add(uuid.NewString(), tree)
	return u, err
}

// Restore brings back a UI from its snapshot. A UI that is still live is
// returned as is. The snapshot is deleted once the UI is live again.
func (m *Manager) Restore(ctx context.Context, id string) (*UI, error) {
	if u, err := m.Get(id); err == nil {
		return u, nil
	}
	if m.config.Store == nil {
		return nil, NewUIError(id, "restore", ErrUINotFound)
	}
	tree, err := snapshot.LoadTree(ctx, m.config.Store, id)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, NewUIError(id, "restore", ErrUINotFound)
	}
	if err != nil {
		return nil, NewUIError(id, "restore", err)
	}
	u, inserted, err := m.add(id, tree)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent restore won; its tree is the live one.
		return u, nil
	}
	if err := m.config.Store.Delete(ctx, id); err != nil {
		m.logger.Warn("snapshot delete failed", "ui", id, "error", err)
	}
	m.logger.Info("ui restored", "ui", id, "nodes", tree.Len())
	return u, nil
}

// add registers a UI for tree under id. When a UI with that id is already
// live it is returned instead and tree is dropped; inserted reports which
// case happened.
func (m *Manager) add(id string, tree *state.Tree) (u *UI, inserted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, NewUIError(id, "create", ErrManagerClosed)
	}
	if existing, ok := m.uis[id]; ok {
		return existing, false, nil
	}
	if m.config.MaxUIs > 0 && len(m.uis) >= m.config.MaxUIs {
		return nil, false, NewUIError(id, "create", ErrMaxUIsReached)
	}
	u = newUI(id, tree, m.config.Dispatcher, m.logger)
	m.uis[id] = u
	return u, true, nil
}

// Get returns a live UI.
func (m *Manager) Get(id string) (*UI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.uis[id]
	if !ok {
		return nil, NewUIError(id, "get", ErrUINotFound)
	}
	return u, nil
}

// Close removes a UI, saving a snapshot when a store is configured.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	u, ok := m.uis[id]
	delete(m.uis, id)
	m.mu.Unlock()
	if !ok {
		return NewUIError(id, "close", ErrUINotFound)
	}
	return m.closeUI(ctx, u)
}

func (m *Manager) closeUI(ctx context.Context, u *UI) error {
	tree, ok := u.close()
	if !ok || m.config.Store == nil {
		return nil
	}
	if err := snapshot.SaveTree(ctx, m.config.Store, u.id, tree); err != nil {
		m.logger.Error("snapshot save failed", "ui", u.id, "error", err)
		return NewUIError(u.id, "close", err)
	}
	return nil
}

// Count returns the number of live UIs.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uis)
}

// Stats returns manager statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{Active: m.Count(), MaxUIs: m.config.MaxUIs}
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired(time.Now())
		case <-m.done:
			return
		}
	}
}

// cleanupExpired closes every UI idle for longer than IdleTimeout at now.
func (m *Manager) cleanupExpired(now time.Time) int {
	var expired []*UI
	m.mu.Lock()
	for id, u := range m.uis {
		if now.Sub(u.LastActive()) > m.config.IdleTimeout {
			expired = append(expired, u)
			delete(m.uis, id)
		}
	}
	m.mu.Unlock()

	for _, u := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		_ = m.closeUI(ctx, u)
		cancel()
	}
	if len(expired) > 0 {
		m.logger.Info("cleaned up idle uis", "count", len(expired))
	}
	return len(expired)
}

// Shutdown stops the cleanup loop and closes every UI. It returns early
// with ctx's error if snapshots cannot be saved in time.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	uis := make([]*UI, 0, len(m.uis))
	for _, u := range m.uis {
		uis = append(uis, u)
	}
	m.uis = make(map[string]*UI)
	m.mu.Unlock()

	close(m.done)
	<-m.cleanupDone

	var errs []error
	for _, u := range uis {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		if err := m.closeUI(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info("ui manager shut down", "closed", len(uis))
	return errors.Join(errs...)
}
