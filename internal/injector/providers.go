package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/arenasim/internal/config"
	"github.com/zeusync/arenasim/internal/core/clock"
	"github.com/zeusync/arenasim/internal/core/events/bus"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
	"github.com/zeusync/arenasim/internal/core/protocol/quic"
	"github.com/zeusync/arenasim/internal/core/protocol/websocket"
	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/system"
	"github.com/zeusync/arenasim/internal/server"
)

// App is the assembled simulator.
type App struct {
	Scenario  config.Scenario
	Logger    *log.Logger
	Bus       bus.EventBus
	Conn      *protocol.Connection
	WebSocket *websocket.Bridge
	QUIC      *quic.Bridge
	World     *system.World
	API       *server.Server
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	ProvideWebSocketBridge,
	ProvideQUICBridge,
	ProvideConnection,
	ProvideClock,
	ProvideRegistry,
	robot.NewPoseTable,
	ProvideSpawner,
	system.NewWorld,
	ProvideAPI,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(sc config.Scenario) *log.Logger {
	return log.New(log.ParseLevel(sc.LogLevel))
}

func ProvideWebSocketBridge(sc config.Scenario, logger log.Log) *websocket.Bridge {
	return websocket.NewBridge(sc.Transport, logger)
}

func ProvideQUICBridge(sc config.Scenario, logger log.Log) *quic.Bridge {
	return quic.NewBridge(sc.Transport, nil, logger)
}

// ProvideConnection fans published frames out to the bus and to every
// enabled bridge.
func ProvideConnection(sc config.Scenario, logger log.Log, events bus.EventBus, ws *websocket.Bridge, q *quic.Bridge) *protocol.Connection {
	sinks := []protocol.Sink{protocol.NewBusSink(events)}
	if sc.Transport.WebSocketAddr != "" {
		sinks = append(sinks, ws)
	}
	if sc.Transport.QUICAddr != "" {
		sinks = append(sinks, q)
	}
	return protocol.NewConnection(logger, sinks...)
}

func ProvideClock() clock.Clock {
	return clock.NewWall()
}

func ProvideRegistry() *robot.Registry {
	return robot.NewRegistry(0)
}

func ProvideSpawner(sc config.Scenario, conn *protocol.Connection, poses *robot.PoseTable, logger log.Log) *robot.Spawner {
	return robot.NewSpawner(robot.SpawnerConfig{
		TopicPrefix: sc.TopicPrefix(),
		SetupPath:   sc.SetupPath,
		StateRate:   sc.StateRate,
	}, conn, poses, nil, logger)
}

func ProvideAPI(sc config.Scenario, world *system.World, conn *protocol.Connection, events bus.EventBus, logger log.Log) *server.Server {
	cfg := server.DefaultConfig()
	cfg.Addr = sc.APIAddr
	cfg.Token = sc.APIToken
	return server.New(cfg, world, conn, events, logger)
}
