package robot

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

var (
	ErrRobotExists   = errors.New("robot already exists")
	ErrRobotNotFound = errors.New("robot not found")
)

const defaultShardCount = 16

type registryShard struct {
	mx     sync.RWMutex
	robots map[string]*Robot
}

// Registry maps namespaces to robots, sharded by namespace hash.
type Registry struct {
	shards []registryShard
	seq    atomic.Uint64
	count  atomic.Int64
}

func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	r := &Registry{shards: make([]registryShard, shardCount)}
	for i := range r.shards {
		r.shards[i].robots = make(map[string]*Robot)
	}
	return r
}

func (r *Registry) shard(ns string) *registryShard {
	return &r.shards[xxhash.Sum64String(ns)%uint64(len(r.shards))]
}

// Add stores robot under its namespace and stamps its spawn order.
func (r *Registry) Add(robot *Robot) error {
	s := r.shard(robot.Namespace)
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, exists := s.robots[robot.Namespace]; exists {
		return ErrRobotExists
	}
	robot.seq = r.seq.Add(1)
	s.robots[robot.Namespace] = robot
	r.count.Add(1)
	return nil
}

func (r *Registry) Has(ns string) bool {
	_, ok := r.Get(ns)
	return ok
}

func (r *Registry) Get(ns string) (*Robot, bool) {
	s := r.shard(ns)
	s.mx.RLock()
	defer s.mx.RUnlock()
	robot, ok := s.robots[ns]
	return robot, ok
}

func (r *Registry) Remove(ns string) (*Robot, error) {
	s := r.shard(ns)
	s.mx.Lock()
	defer s.mx.Unlock()
	robot, ok := s.robots[ns]
	if !ok {
		return nil, ErrRobotNotFound
	}
	delete(s.robots, ns)
	r.count.Add(-1)
	return robot, nil
}

func (r *Registry) Len() int { return int(r.count.Load()) }

// All returns robots in spawn order.
func (r *Registry) All() []*Robot {
	out := make([]*Robot, 0, r.Len())
	for i := range r.shards {
		s := &r.shards[i]
		s.mx.RLock()
		for _, robot := range s.robots {
			out = append(out, robot)
		}
		s.mx.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

type robotState struct {
	pose  physics.Pose
	twist physics.Twist
}

// PoseTable holds the current pose and velocity of every robot.
type PoseTable struct {
	mx     sync.RWMutex
	states map[string]robotState
}

var _ PoseSink = (*PoseTable)(nil)

func NewPoseTable() *PoseTable {
	return &PoseTable{states: make(map[string]robotState)}
}

func (t *PoseTable) SetPose(name string, pose msgs.Pose) {
	t.Set(name, pose.Physics(), physics.Twist{})
}

func (t *PoseTable) Set(name string, pose physics.Pose, twist physics.Twist) {
	if pose.Orientation == (physics.Quat{}) {
		pose.Orientation = physics.Identity
	}
	t.mx.Lock()
	t.states[name] = robotState{pose: pose, twist: twist}
	t.mx.Unlock()
}

func (t *PoseTable) Delete(name string) {
	t.mx.Lock()
	delete(t.states, name)
	t.mx.Unlock()
}

func (t *PoseTable) State(name string) (physics.Pose, physics.Twist, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	s, ok := t.states[name]
	return s.pose, s.twist, ok
}
