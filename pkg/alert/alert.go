// Package alert notifies external destinations when a keyword's
// momentum score crosses the configured threshold.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Notification is the data sent to alert destinations for one keyword.
type Notification struct {
	Keyword       string    `json:"keyword"`
	SnapshotDate  time.Time `json:"snapshot_date"`
	MomentumScore int       `json:"momentum_score"`
	Lift          float64   `json:"lift"`
	Acceleration  float64   `json:"acceleration"`
	Novelty       float64   `json:"novelty"`
	Noise         float64   `json:"noise"`
	Body          string    `json:"body"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
