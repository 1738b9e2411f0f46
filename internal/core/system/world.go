// Package system runs the simulation loop. The World owns every robot and
// sensor; other goroutines reach them only through commands executed on the
// loop goroutine between ticks.
package system

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zeusync/arenasim/internal/core/clock"
	"github.com/zeusync/arenasim/internal/core/events/bus"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/sensor"
	"github.com/zeusync/arenasim/pkg/sequence"
)

const (
	// LifecycleTopic carries robot spawn and delete events on the bus.
	LifecycleTopic = "world/robots"

	EventRobotSpawned = "robot.spawned"
	EventRobotDeleted = "robot.deleted"

	DefaultFrameRate = 60.0

	defaultQueueSize = 256
)

var (
	ErrWorldStopped  = errors.New("world is not running")
	ErrUnknownSensor = errors.New("robot has no such contact sensor")
	ErrBadEvent      = errors.New("contact event must be enter or exit")
)

// ContactEvent is an overlap change reported for one contact sensor of a
// robot. Sensor defaults to the robot's collision sensor.
type ContactEvent struct {
	Robot  string `json:"robot" yaml:"robot" toml:"robot"`
	Sensor string `json:"sensor,omitempty" yaml:"sensor" toml:"sensor"`
	Tag    string `json:"tag" yaml:"tag" toml:"tag"`
	Event  string `json:"event" yaml:"event" toml:"event"`
}

// ScriptedContact is a contact event fired once simulation time reaches At.
type ScriptedContact struct {
	At           float64 `yaml:"at" toml:"at"`
	ContactEvent `yaml:",inline"`
}

type command struct {
	fn   func() error
	done chan error
}

type Stats struct {
	Frames  uint64  `json:"frames"`
	Robots  int     `json:"robots"`
	SimTime float64 `json:"sim_time"`
	Pending int     `json:"pending_commands"`
	Held    int     `json:"held_contacts"`
}

// World drives sensors from a single goroutine.
type World struct {
	clock    clock.Clock
	registry *robot.Registry
	spawner  *robot.Spawner
	poses    *robot.PoseTable
	events   bus.EventBus
	logger   log.Log

	commands chan command
	scripted *sequence.Timeline[ScriptedContact]
	// held are due scripted contacts whose robot or sensor does not exist
	// yet, in firing order.
	held []ScriptedContact

	frames    atomic.Uint64
	heldCount atomic.Int64
	simTime   atomic.Uint64
	running   atomic.Bool
}

func NewWorld(c clock.Clock, registry *robot.Registry, spawner *robot.Spawner, poses *robot.PoseTable, events bus.EventBus, logger log.Log) *World {
	if logger == nil {
		logger = log.Provide()
	}
	return &World{
		clock:    c,
		registry: registry,
		spawner:  spawner,
		poses:    poses,
		events:   events,
		logger:   logger.With(log.String("component", "world")),
		commands: make(chan command, defaultQueueSize),
		scripted: sequence.NewTimeline[ScriptedContact](),
	}
}

// Submit queues fn for the next Step. The returned channel yields fn's
// error once it ran.
func (w *World) Submit(ctx context.Context, fn func() error) (<-chan error, error) {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case w.commands <- cmd:
		return cmd.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn on the loop goroutine and waits for it.
func (w *World) Do(ctx context.Context, fn func() error) error {
	done, err := w.Submit(ctx, fn)
	if err != nil {
		return err
	}
	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step runs queued commands in FIFO order, fires scripted contacts that are
// due, then ticks every robot in spawn order.
func (w *World) Step(now float64) {
	w.drain()

	w.fireScripted(now)

	for _, r := range w.registry.All() {
		r.Tick(now)
	}
	w.frames.Add(1)
	w.simTime.Store(uint64(now * 1e9))
}

// fireScripted applies due scripted contacts. A contact for a robot or sensor
// that is not attached yet stays held, and so does every later contact for
// the same sensor, so enter/exit pairs are never split.
func (w *World) fireScripted(now float64) {
	due := append(w.held, w.scripted.PopDue(now)...)
	w.held = nil
	blocked := make(map[string]bool)
	for _, sc := range due {
		key := contactKey(sc.ContactEvent)
		if blocked[key] {
			w.held = append(w.held, sc)
			continue
		}
		err := w.applyContact(sc.ContactEvent)
		switch {
		case err == nil:
		case errors.Is(err, robot.ErrRobotNotFound), errors.Is(err, ErrUnknownSensor):
			blocked[key] = true
			w.held = append(w.held, sc)
		default:
			w.logger.Warn("Scripted contact dropped",
				log.Float64("at", sc.At),
				log.String("robot", sc.Robot),
				log.Error(err))
		}
	}
	w.heldCount.Store(int64(len(w.held)))
}

func contactKey(ev ContactEvent) string {
	node := ev.Sensor
	if node == "" {
		node = robot.CollisionSensorName
	}
	return ev.Robot + "/" + node
}

func (w *World) drain() {
	for {
		select {
		case cmd := <-w.commands:
			cmd.done <- cmd.fn()
		default:
			return
		}
	}
}

// Run steps the world at rateHz with the world clock until ctx is done.
func (w *World) Run(ctx context.Context, rateHz float64) error {
	if rateHz <= 0 {
		rateHz = DefaultFrameRate
	}
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("world already running")
	}
	defer w.running.Store(false)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer ticker.Stop()

	w.logger.Info("World loop started", log.Float64("rate_hz", rateHz))
	for {
		select {
		case <-ctx.Done():
			w.drainCancelled()
			w.logger.Info("World loop stopped", log.Uint64("frames", w.frames.Load()))
			return nil
		case <-ticker.C:
			w.Step(w.clock.Now())
		}
	}
}

func (w *World) drainCancelled() {
	for {
		select {
		case cmd := <-w.commands:
			cmd.done <- ErrWorldStopped
		default:
			return
		}
	}
}

// Schedule queues scripted contacts. Must be called before Run or from a
// command.
func (w *World) Schedule(contacts ...ScriptedContact) {
	for _, sc := range contacts {
		w.scripted.Push(sc.At, sc)
	}
}

func (w *World) Stats() Stats {
	return Stats{
		Frames:  w.frames.Load(),
		Robots:  w.registry.Len(),
		SimTime: float64(w.simTime.Load()) / 1e9,
		Pending: len(w.commands),
		Held:    int(w.heldCount.Load()),
	}
}

// Spawn builds and registers a robot.
func (w *World) Spawn(ctx context.Context, req robot.SpawnRequest) (robot.Info, error) {
	var info robot.Info
	err := w.Do(ctx, func() error {
		if w.registry.Has(req.Namespace) {
			return fmt.Errorf("%w: %s", robot.ErrRobotExists, req.Namespace)
		}
		r, err := w.spawner.Spawn(req)
		if err != nil {
			return err
		}
		if err = w.registry.Add(r); err != nil {
			return err
		}
		info = r.Info()
		w.publish(EventRobotSpawned, info)
		return nil
	})
	return info, err
}

// Delete removes a robot; its sensors stop publishing immediately.
func (w *World) Delete(ctx context.Context, ns string) error {
	return w.Do(ctx, func() error {
		r, err := w.registry.Remove(ns)
		if err != nil {
			return fmt.Errorf("%w: %s", err, ns)
		}
		w.poses.Delete(ns)
		w.publish(EventRobotDeleted, r.Info())
		return nil
	})
}

func (w *World) AttachSafeDist(ctx context.Context, req robot.SafeDistRequest) (bool, error) {
	var ok bool
	err := w.Do(ctx, func() error {
		r, found := w.registry.Get(req.Robot)
		if !found {
			return fmt.Errorf("%w: %s", robot.ErrRobotNotFound, req.Robot)
		}
		var err error
		ok, err = w.spawner.AttachSafeDist(r, req)
		return err
	})
	return ok, err
}

// Contact applies a trigger event to a robot's contact sensor.
func (w *World) Contact(ctx context.Context, ev ContactEvent) error {
	return w.Do(ctx, func() error { return w.applyContact(ev) })
}

// Robots lists robots in spawn order.
func (w *World) Robots(ctx context.Context) ([]robot.Info, error) {
	var out []robot.Info
	err := w.Do(ctx, func() error {
		for _, r := range w.registry.All() {
			out = append(out, r.Info())
		}
		return nil
	})
	return out, err
}

func (w *World) applyContact(ev ContactEvent) error {
	r, ok := w.registry.Get(ev.Robot)
	if !ok {
		return fmt.Errorf("%w: %s", robot.ErrRobotNotFound, ev.Robot)
	}
	node := ev.Sensor
	if node == "" {
		node = robot.CollisionSensorName
	}
	s, ok := r.ContactSensor(node)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownSensor, ev.Robot, node)
	}
	var listener sensor.TriggerListener = s
	switch ev.Event {
	case "enter":
		listener.OnEnter(ev.Tag)
	case "exit":
		listener.OnExit(ev.Tag)
	default:
		return fmt.Errorf("%w: %q", ErrBadEvent, ev.Event)
	}
	return nil
}

func (w *World) publish(typ string, info robot.Info) {
	if w.events == nil {
		return
	}
	if err := w.events.Publish(LifecycleTopic, bus.NewEvent(typ, "world", info, nil)); err != nil {
		w.logger.Warn("Lifecycle handler failed", log.String("event", typ), log.Error(err))
	}
}
