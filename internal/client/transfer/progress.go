package transfer

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
)

// Meter tracks byte progress of one transfer and computes a smoothed rate
// and ETA for the transfer list.
type Meter struct {
	mu        sync.Mutex
	uuid      string
	name      string
	total     int64
	done      int64
	startedAt time.Time
	lastAt    time.Time
	lastDone  int64
	rateBps   float64
	alpha     float64
	now       func() time.Time
}

// NewMeter returns a meter with a default smoothing factor.
func NewMeter(uuid, name string, total int64) *Meter {
	return NewMeterWithNow(uuid, name, total, time.Now)
}

// NewMeterWithNow returns a meter with a custom time source (for tests).
func NewMeterWithNow(uuid, name string, total int64, now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}
	m := &Meter{uuid: uuid, name: name, total: total, alpha: 0.2, now: now}
	m.startedAt = now()
	m.lastAt = m.startedAt
	return m
}

// Add increments the completed byte count and refreshes the smoothed rate.
func (m *Meter) Add(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.done += int64(n)
	deltaBytes := m.done - m.lastDone
	deltaTime := now.Sub(m.lastAt).Seconds()
	if deltaTime > 0 {
		inst := float64(deltaBytes) / deltaTime
		if m.rateBps == 0 {
			m.rateBps = inst
		} else {
			m.rateBps = m.alpha*inst + (1-m.alpha)*m.rateBps
		}
		m.lastAt = now
		m.lastDone = m.done
	}
}

// Snapshot returns the transfer record for the current state.
func (m *Meter) Snapshot(state models.TransferState) *models.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &models.Transfer{
		UUID:      m.uuid,
		Name:      m.name,
		Total:     m.total,
		Done:      m.done,
		StartedAt: m.startedAt,
		UpdatedAt: m.lastAt,
		RateBps:   m.rateBps,
		State:     state,
	}
	if m.rateBps > 0 && m.total > m.done {
		remaining := float64(m.total - m.done)
		t.ETA = time.Duration(remaining/m.rateBps) * time.Second
	}
	return t
}
