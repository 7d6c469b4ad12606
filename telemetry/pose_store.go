package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/signalsfoundry/satnav/model"
)

// PoseStore is a thread-safe holder for the latest vehicle pose. A feed
// writes with Update while the tick driver reads consistent copies with
// Latest.
type PoseStore struct {
	mu sync.RWMutex

	latest  model.Pose
	hasPose bool
	updates uint64

	subs    []poseSub
	nextSub int
}

type poseSub struct {
	id int
	fn func(model.Pose)
}

// NewPoseStore constructs an empty store.
func NewPoseStore() *PoseStore {
	return &PoseStore{}
}

// Update replaces the latest pose and notifies subscribers. Poses with
// non-finite coordinates are rejected.
func (s *PoseStore) Update(p model.Pose) error {
	for _, v := range []float64{p.X, p.Y, p.Z, p.Heading} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("pose has non-finite component: %+v", p)
		}
	}

	s.mu.Lock()
	s.latest = p
	s.hasPose = true
	s.updates++
	subs := make([]func(model.Pose), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub.fn)
	}
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, fn := range subs {
		fn(p)
	}
	return nil
}

// Latest returns a copy of the most recent pose. ok is false until the
// first Update.
func (s *PoseStore) Latest() (model.Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasPose
}

// Updates returns how many poses have been accepted.
func (s *PoseStore) Updates() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// Subscribe registers a callback for every accepted pose. It returns an
// unsubscribe function.
func (s *PoseStore) Subscribe(fn func(model.Pose)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, poseSub{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// ReadTrace decodes a recorded drive: a JSON array of poses.
func ReadTrace(r io.Reader) ([]model.Pose, error) {
	var poses []model.Pose
	if err := json.NewDecoder(r).Decode(&poses); err != nil {
		return nil, fmt.Errorf("decode pose trace: %w", err)
	}
	return poses, nil
}

// LoadTraceFile reads a pose trace from path.
func LoadTraceFile(path string) ([]model.Pose, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pose trace: %w", err)
	}
	defer f.Close()
	return ReadTrace(f)
}
