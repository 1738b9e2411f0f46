// Package msgs holds the wire schema of everything the simulator publishes.
//
// Each message serializes field by field in declaration order using the
// little-endian layout of pkg/encoding, so a payload can be decoded by any
// peer that knows the message name.
package msgs

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/arenasim/pkg/encoding"
	"github.com/zeusync/arenasim/pkg/generic"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Writers grown past maxPooledWriter by large scans are not kept.
var writers = generic.NewPool(func() *encoding.Writer { return encoding.NewWriter(256) }).
	WithReset(func(w *encoding.Writer) { w.Reset() }).
	WithLimit(func(w *encoding.Writer) bool { return w.Len() <= maxPooledWriter })

const maxPooledWriter = 1 << 16

// Message is a publishable wire type.
type Message interface {
	MessageName() string
	SerializeTo(w *encoding.Writer)
	DeserializeFrom(r *encoding.Reader)
}

// Marshal serializes m.
func Marshal(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("marshal: %w: nil message", ErrUnknownMessage)
	}
	w := writers.Get()
	defer writers.Put(w)
	m.SerializeTo(w)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out, nil
}

// Unmarshal decodes data into m. The whole payload must be consumed.
func Unmarshal(data []byte, m Message) error {
	r := encoding.NewReader(data)
	m.DeserializeFrom(r)
	if err := r.Finish(); err != nil {
		return fmt.Errorf("unmarshal %s: %w", m.MessageName(), err)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Message{}
)

// Register makes a message type decodable by name.
func Register(name string, factory func() Message) {
	registryMu.Lock()
	registry[name] = factory
	registryMu.Unlock()
}

// New returns an empty message of the named type.
func New(name string) (Message, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, name)
	}
	return factory(), nil
}

// Decode builds a message of the named type from its payload.
func Decode(name string, data []byte) (Message, error) {
	m, err := New(name)
	if err != nil {
		return nil, err
	}
	if err = Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Names lists registered message types.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(CollisionName, func() Message { return &Collision{} })
	Register(LaserScanName, func() Message { return &LaserScan{} })
	Register(RobotStateName, func() Message { return &RobotState{} })
}
