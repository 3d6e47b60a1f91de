package sensors

import (
	"sync"
	"time"

	"energy-monitor/internal/models"
)

// Network упорядоченная сеть датчиков
type Network struct {
	mu      sync.RWMutex
	order   []string
	sensors map[string]*Sensor
}

// NewNetwork создает пустую сеть
func NewNetwork() *Network {
	return &Network{sensors: make(map[string]*Sensor)}
}

// Add добавляет датчик. Датчик с тем же ID заменяется на прежнем месте.
func (n *Network) Add(s *Sensor) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.sensors[s.ID]; !exists {
		n.order = append(n.order, s.ID)
	}
	n.sensors[s.ID] = s
}

// Remove удаляет датчик из сети
func (n *Network) Remove(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.sensors[id]; !exists {
		return
	}
	delete(n.sensors, id)
	for i, sid := range n.order {
		if sid == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Get возвращает датчик по ID
func (n *Network) Get(id string) (*Sensor, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	s, ok := n.sensors[id]
	return s, ok
}

// IDs возвращает идентификаторы в порядке добавления
func (n *Network) IDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Len количество датчиков
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.order)
}

// ReadAll опрашивает все активные датчики в порядке добавления
func (n *Network) ReadAll(now time.Time) []models.Reading {
	n.mu.RLock()
	defer n.mu.RUnlock()

	readings := make([]models.Reading, 0, len(n.order))
	for _, id := range n.order {
		if r, ok := n.sensors[id].Read(now); ok {
			readings = append(readings, r)
		}
	}
	return readings
}
