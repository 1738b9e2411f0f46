package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/sensor"
	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

const jackalURDF = `<?xml version="1.0"?>
<robot name="jackal">
  <link name="base_link"/>
  <link name="chassis_link"/>
  <link name="laser_link"/>
  <joint name="chassis_joint" type="fixed">
    <parent link="base_link"/>
    <child link="chassis_link"/>
  </joint>
  <joint name="laser_joint" type="fixed">
    <origin xyz="0.12 0 0.3" rpy="0 0 1.5707963"/>
    <parent link="chassis_link"/>
    <child link="laser_link"/>
  </joint>
</robot>`

const jackalModel = `
bodies:
  - name: base_link
plugins:
  - type: DiffDrive
    body: base_link
  - type: Laser
    frame: laser_link
    range: 30
    angle: {min: -2.35, max: 2.35, increment: 0.0087}
    update_rate: 10
`

const jackalUnity = `
components:
  collider:
    height: "0.4"
    radius: "0.3"
    position: ["0", "0", "0.1"]
`

type recorder struct {
	registered map[string]string
	out        []msgs.Message
}

func (r *recorder) RegisterPublisher(topic, messageType string) error {
	r.registered[topic] = messageType
	return nil
}

func (r *recorder) Publish(_ string, msg msgs.Message) { r.out = append(r.out, msg) }

func writeSetup(t *testing.T, model, unity string) string {
	t.Helper()
	dir := t.TempDir()
	robotDir := filepath.Join(dir, "entities", "robots", "jackal")
	require.NoError(t, os.MkdirAll(filepath.Join(robotDir, "unity"), 0o755))
	if model != "" {
		require.NoError(t, os.WriteFile(ModelConfigPath(dir, "jackal"), []byte(model), 0o644))
	}
	if unity != "" {
		require.NoError(t, os.WriteFile(UnityConfigPath(dir, "jackal"), []byte(unity), 0o644))
	}
	return dir
}

func newSpawner(t *testing.T, setup string) (*Spawner, *recorder) {
	t.Helper()
	rec := &recorder{registered: map[string]string{}}
	return NewSpawner(SpawnerConfig{TopicPrefix: "/sim_1", SetupPath: setup}, rec, NewPoseTable(), nil, log.NewNop()), rec
}

func TestParseURDF(t *testing.T) {
	desc, err := ParseURDF(jackalURDF)
	require.NoError(t, err)
	assert.Equal(t, "jackal", desc.Model)
	assert.Equal(t, "base_link", desc.Root.Name())

	laser, ok := desc.Root.FindChild("laser_link")
	require.True(t, ok)
	assert.Equal(t, "base_link/chassis_link/laser_link", laser.Path())
	assert.InDelta(t, 0.3, laser.Local().Position.Z(), 1e-9)
	assert.InDelta(t, 1.5707963, laser.Local().Orientation.Yaw(), 1e-6)
}

func TestParseURDFErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"not xml":   "<robot",
		"no links":  `<robot name="x"/>`,
		"bad joint": `<robot name="x"><link name="a"/><joint name="j"><parent link="a"/><child link="b"/></joint></robot>`,
		"two roots": `<robot name="x"><link name="a"/><link name="b"/></robot>`,
		"bad xyz":   `<robot name="x"><link name="a"/><link name="b"/><joint name="j"><origin xyz="1 2"/><parent link="a"/><child link="b"/></joint></robot>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseURDF(doc)
			assert.ErrorIs(t, err, ErrInvalidURDF)
		})
	}
}

func TestModelConfigPlugin(t *testing.T) {
	setup := writeSetup(t, jackalModel, "")
	cfg, err := LoadModelConfig(setup, "jackal")
	require.NoError(t, err)

	laser, ok := cfg.Plugin("Laser")
	require.True(t, ok)
	assert.Equal(t, "laser_link", laser["frame"])

	_, ok = cfg.Plugin("Camera")
	assert.False(t, ok)

	_, err = LoadUnityConfig(setup, "jackal")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestSpawnAttachesAllSensors(t *testing.T) {
	sp, rec := newSpawner(t, writeSetup(t, jackalModel, jackalUnity))

	r, err := sp.Spawn(SpawnRequest{Namespace: "jackal1", URDF: jackalURDF})
	require.NoError(t, err)
	assert.Equal(t, "jackal", r.Model)

	info := r.Info()
	require.Len(t, info.Sensors, 3)
	assert.Equal(t, SensorInfo{Node: "jackal1", Name: StatePublisherName, Topic: "/sim_1/jackal1/state"}, info.Sensors[0])
	assert.Equal(t, SensorInfo{Node: "jackal1/base_link/chassis_link/laser_link", Name: LaserScanSensorName, Topic: "/sim_1/jackal1/scan"}, info.Sensors[1])
	assert.Equal(t, SensorInfo{Node: "jackal1/CollisionSensor", Name: CollisionSensorName, Topic: "/sim_1/jackal1/collision"}, info.Sensors[2])

	assert.Equal(t, msgs.CollisionName, rec.registered["/sim_1/jackal1/collision"])
	assert.Equal(t, msgs.LaserScanName, rec.registered["/sim_1/jackal1/scan"])
	assert.Equal(t, msgs.RobotStateName, rec.registered["/sim_1/jackal1/state"])

	cs, ok := r.ContactSensor(CollisionSensorName)
	require.True(t, ok)
	assert.Equal(t, physics.Capsule{Height: 0.4, Radius: 0.3, Center: physics.V3(0, 0, 0.1)}, cs.Collider())

	laser := r.Sensors()[1].(*sensor.LaserScanSensor)
	assert.Equal(t, "jackal1/laser_link", laser.FrameID())
	assert.Equal(t, 541, laser.ReadingCount())

	r.Tick(0.2)
	assert.Len(t, rec.out, 3)
}

func TestSpawnWithoutConfigsKeepsStatePublisher(t *testing.T) {
	sp, _ := newSpawner(t, t.TempDir())
	r, err := sp.Spawn(SpawnRequest{Namespace: "jackal1", Model: "jackal", URDF: jackalURDF})
	require.NoError(t, err)
	require.Len(t, r.Sensors(), 1)
	assert.Equal(t, StatePublisherName, r.Sensors()[0].Name())
}

func TestSpawnMissingLaserFrame(t *testing.T) {
	model := `
plugins:
  - type: Laser
    frame: lidar_link
    range: 10
    angle: {min: 0, max: 1, increment: 0.1}
`
	sp, _ := newSpawner(t, writeSetup(t, model, jackalUnity))
	r, err := sp.Spawn(SpawnRequest{Namespace: "jackal1", URDF: jackalURDF})
	require.NoError(t, err)
	names := []string{}
	for _, s := range r.Sensors() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{StatePublisherName, CollisionSensorName}, names)
}

func TestSpawnRejectsBadRequests(t *testing.T) {
	sp, _ := newSpawner(t, t.TempDir())
	_, err := sp.Spawn(SpawnRequest{URDF: jackalURDF})
	assert.ErrorIs(t, err, ErrEmptyNamespace)
	_, err = sp.Spawn(SpawnRequest{Namespace: "x", URDF: "nope"})
	assert.ErrorIs(t, err, ErrInvalidURDF)
}

func TestAttachSafeDist(t *testing.T) {
	sp, rec := newSpawner(t, writeSetup(t, jackalModel, jackalUnity))
	r, err := sp.Spawn(SpawnRequest{Namespace: "jackal1", URDF: jackalURDF})
	require.NoError(t, err)

	ok, err := sp.AttachSafeDist(r, SafeDistRequest{Robot: "jackal1", SafeDist: 0.5, Topic: "ped_safe", Ped: true, Obs: true})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSafeDistKind)

	ok, err = sp.AttachSafeDist(r, SafeDistRequest{Robot: "jackal1", SafeDist: 0.5, Topic: "ped_safe", Ped: true})
	require.NoError(t, err)
	require.True(t, ok)

	ped, found := r.ContactSensor(PedSafeDistSensorName)
	require.True(t, found)
	assert.Equal(t, "/sim_1/jackal1/ped_safe", ped.Topic())
	assert.Equal(t, msgs.CollisionName, rec.registered["/sim_1/jackal1/ped_safe"])
	assert.InDelta(t, 0.8, ped.Collider().Radius, 1e-9)
	assert.Equal(t, 0.4, ped.Collider().Height)
	assert.Equal(t, physics.V3(0, 0, 0.1), ped.Collider().Center)

	ped.OnEnter(sensor.ObstacleTag)
	assert.False(t, ped.InContact())
	ped.OnEnter(sensor.PedestrianTag)
	assert.True(t, ped.InContact())

	ok, err = sp.AttachSafeDist(r, SafeDistRequest{Robot: "jackal1", SafeDist: 1, Topic: "ped_safe", Ped: true})
	require.NoError(t, err)
	require.True(t, ok)
	replaced, _ := r.ContactSensor(PedSafeDistSensorName)
	assert.NotSame(t, ped, replaced)
	assert.InDelta(t, 1.3, replaced.Collider().Radius, 1e-9)
	assert.Len(t, r.Sensors(), 4)

	ok, err = sp.AttachSafeDist(r, SafeDistRequest{Robot: "jackal1", SafeDist: 0.2, Topic: "obs_safe", Obs: true})
	require.NoError(t, err)
	require.True(t, ok)
	obs, _ := r.ContactSensor(ObsSafeDistSensorName)
	obs.OnEnter(sensor.PedestrianTag)
	assert.False(t, obs.InContact())
	obs.OnEnter(sensor.ObstacleTag)
	assert.True(t, obs.InContact())
}

func TestAttachSafeDistNeedsCollisionSensor(t *testing.T) {
	sp, _ := newSpawner(t, t.TempDir())
	r, err := sp.Spawn(SpawnRequest{Namespace: "jackal1", Model: "jackal", URDF: jackalURDF})
	require.NoError(t, err)
	ok, err := sp.AttachSafeDist(r, SafeDistRequest{SafeDist: 1, Topic: "x", Obs: true})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoCollisionSensor)
}

func TestRegistryKeepsSpawnOrder(t *testing.T) {
	reg := NewRegistry(4)
	names := []string{"r5", "r1", "r9", "r3", "r7", "r2"}
	for _, n := range names {
		require.NoError(t, reg.Add(&Robot{Namespace: n}))
	}
	assert.ErrorIs(t, reg.Add(&Robot{Namespace: "r1"}), ErrRobotExists)
	assert.Equal(t, len(names), reg.Len())

	var got []string
	for _, r := range reg.All() {
		got = append(got, r.Namespace)
	}
	assert.Equal(t, names, got)

	_, err := reg.Remove("r9")
	require.NoError(t, err)
	_, err = reg.Remove("r9")
	assert.ErrorIs(t, err, ErrRobotNotFound)
	assert.False(t, reg.Has("r9"))
	assert.Equal(t, len(names)-1, reg.Len())
}

func TestPoseTable(t *testing.T) {
	table := NewPoseTable()
	table.SetPose("r1", msgs.Pose{Position: msgs.Point{X: 1}})
	pose, _, ok := table.State("r1")
	require.True(t, ok)
	assert.Equal(t, 1.0, pose.Position.X())
	assert.Equal(t, physics.Identity, pose.Orientation)

	table.Delete("r1")
	_, _, ok = table.State("r1")
	assert.False(t, ok)
}
