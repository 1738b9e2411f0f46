package injector

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arenasim/internal/config"
	"github.com/zeusync/arenasim/internal/core/events/bus"
	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/sensor"
	"github.com/zeusync/arenasim/internal/core/system"
)

const unityParams = `
components:
  collider:
    height: 0.5
    radius: 0.3
    position: [0, 0, 0.25]
`

func TestInitializeAppPublishesThroughBus(t *testing.T) {
	setup := t.TempDir()
	path := robot.UnityConfigPath(setup, "box")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(unityParams), 0o644))

	sc := config.Default()
	sc.Namespace = "sim_1"
	sc.SetupPath = setup
	sc.APIAddr = ""
	sc.Transport.WebSocketAddr = ""
	sc.Transport.QUICAddr = ""
	sc.LogLevel = "error"

	app, err := InitializeApp(sc)
	require.NoError(t, err)
	require.NotNil(t, app.World)

	var collisions, spawned atomic.Int32
	_, err = app.Bus.SubscribeType(sensor.CollisionTopic("/sim_1", "r1"), msgs.CollisionName, func(bus.Event) error {
		collisions.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = app.Bus.SubscribeType(system.LifecycleTopic, system.EventRobotSpawned, func(bus.Event) error {
		spawned.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.World.Run(ctx, 200) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()
	info, err := app.World.Spawn(reqCtx, robot.SpawnRequest{
		Namespace: "r1",
		URDF:      `<robot name="box"><link name="base_link"/></robot>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", info.Namespace)

	assert.Eventually(t, func() bool { return collisions.Load() > 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), spawned.Load())
	assert.Contains(t, topicNames(app), sensor.CollisionTopic("/sim_1", "r1"))
}

func topicNames(app *App) []string {
	var out []string
	for _, ti := range app.Conn.Topics() {
		out = append(out, ti.Name)
	}
	return out
}
