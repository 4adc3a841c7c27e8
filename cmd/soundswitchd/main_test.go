package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// writeTestConfig writes a config whose database lives in a temp dir.
func writeTestConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "soundswitch.db")
	configPath = filepath.Join(dir, "config.yaml")

	content := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
  qos: 1

zwave:
  prefix: zwave
  health_interval: 15

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnv, "/etc/soundswitch/config.yaml")
	if got := getConfigPath(); got != "/etc/soundswitch/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"mapping", "list"},
		{"mapping", "release"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %v, %v", path, cmd.Name(), err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want a config load error", err)
	}
}

func TestResolveClientID(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	id, err := resolveClientID(ctx, db, "configured-id")
	if err != nil || id != "configured-id" {
		t.Fatalf("resolveClientID(configured) = %q, %v", id, err)
	}
	if _, err := db.GetSetting(ctx, database.SettingMQTTClientID); !errors.Is(err, database.ErrSettingNotFound) {
		t.Errorf("configured id was persisted: %v", err)
	}

	first, err := resolveClientID(ctx, db, "")
	if err != nil {
		t.Fatalf("resolveClientID() error: %v", err)
	}
	if !strings.HasPrefix(first, clientIDPrefix) || len(first) != len(clientIDPrefix)+36 {
		t.Errorf("generated id = %q", first)
	}

	second, err := resolveClientID(ctx, db, "")
	if err != nil || second != first {
		t.Errorf("second resolve = %q, %v; want persisted %q", second, err, first)
	}
}

func TestBridgeConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ZWave.Prefix = "zw"
	cfg.ZWave.HealthInterval = 15
	cfg.MQTT.QoS = 2

	bc := bridgeConfig(cfg, "soundswitch-abc")
	want := zwave.TopicScheme{
		Prefix:         "zw",
		ClientsSegment: "_CLIENTS",
		GatewayMarker:  "ZWAVE_GATEWAY",
		CommandClass:   zwave.CommandClassSoundSwitch,
	}
	if bc.Scheme != want {
		t.Errorf("Scheme = %+v, want %+v", bc.Scheme, want)
	}
	if bc.QoS != 2 || bc.HealthInterval != 15*time.Second || bc.BridgeID != "soundswitch-abc" {
		t.Errorf("config = %+v", bc)
	}
}

func TestMigrateCommand(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	out, err := execute(t, "--config", configPath, "migrate", "--status")
	if err != nil {
		t.Fatalf("migrate --status error: %v", err)
	}
	if !strings.Contains(out, "pending") || strings.Contains(out, " applied ") {
		t.Errorf("fresh status output:\n%s", out)
	}

	out, err = execute(t, "--config", configPath, "migrate")
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	if !strings.Contains(out, "applied 1 migration(s)") {
		t.Errorf("migrate output = %q", out)
	}

	out, err = execute(t, "--config", configPath, "migrate")
	if err != nil || !strings.Contains(out, "applied 0 migration(s)") {
		t.Errorf("second migrate = %q, %v", out, err)
	}

	out, err = execute(t, "--config", configPath, "migrate", "--down", "1")
	if err != nil || !strings.Contains(out, "rolled back 1 migration(s)") {
		t.Errorf("migrate --down = %q, %v", out, err)
	}

	if _, err := execute(t, "--config", configPath, "migrate", "--down", "1", "--status"); err == nil {
		t.Error("--down with --status should be rejected")
	}
}

// seedMapping stores two mapped devices and one mapping without a device.
func seedMapping(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(database.Config{Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	entries := []mapping.Entry{
		{ExternalID: "12_1_defaultVolume", NodeID: 12, EndpointID: 1, Attribute: zwave.AttributeVolume, Handle: 1},
		{ExternalID: "12_1_toneId", NodeID: 12, EndpointID: 1, Attribute: zwave.AttributeTone, Handle: 2},
		{ExternalID: "14_0_toneId", NodeID: 14, EndpointID: 0, Attribute: zwave.AttributeTone, Handle: 3},
	}
	if err := mapping.NewSQLiteStore(db.DB).SaveMapping(ctx, entries); err != nil {
		t.Fatalf("SaveMapping() error: %v", err)
	}

	repo := device.NewSQLiteRepository(db.DB)
	for _, d := range []*device.Device{
		{Handle: 1, ExternalID: "12_1_defaultVolume", Name: "N12E1: volume", Kind: device.KindVolume, NodeID: 12, EndpointID: 1},
		{Handle: 2, ExternalID: "12_1_toneId", Name: "N12E1: tone", Kind: device.KindTone, NodeID: 12, EndpointID: 1},
	} {
		if err := repo.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert(%d) error: %v", d.Handle, err)
		}
	}
}

func TestMappingCommands(t *testing.T) {
	configPath, dbPath := writeTestConfig(t)
	seedMapping(t, dbPath)

	out, err := execute(t, "--config", configPath, "mapping", "list")
	if err != nil {
		t.Fatalf("mapping list error: %v", err)
	}
	for _, want := range []string{"12_1_defaultVolume", "12_1_toneId", "14_0_toneId", "3 handle(s) in use, next free 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "--config", configPath, "mapping", "release", "2")
	if err != nil || !strings.Contains(out, "released handle 2 (12_1_toneId)") {
		t.Errorf("release 2 = %q, %v", out, err)
	}

	// Handle 3 has no device row.
	out, err = execute(t, "--config", configPath, "mapping", "release", "3")
	if err != nil || !strings.Contains(out, "released handle 3 (14_0_toneId)") {
		t.Errorf("release 3 = %q, %v", out, err)
	}

	out, err = execute(t, "--config", configPath, "mapping", "release", "7")
	if err != nil || !strings.Contains(out, "handle 7 was not mapped") {
		t.Errorf("release 7 = %q, %v", out, err)
	}

	for _, bad := range []string{"abc", "0", "255"} {
		if _, err := execute(t, "--config", configPath, "mapping", "release", bad); err == nil {
			t.Errorf("release %s should fail", bad)
		}
	}

	out, err = execute(t, "--config", configPath, "mapping", "list", "--json")
	if err != nil {
		t.Fatalf("mapping list --json error: %v", err)
	}
	if !strings.Contains(out, `"external_id": "12_1_defaultVolume"`) || strings.Contains(out, "12_1_toneId") {
		t.Errorf("list after release:\n%s", out)
	}
}
