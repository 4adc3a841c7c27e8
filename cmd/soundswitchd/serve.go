package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-soundswitch/internal/api"
	"github.com/nerrad567/gray-logic-soundswitch/internal/bridges/soundswitch"
	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-soundswitch/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-soundswitch/internal/mapping"
	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// clientIDPrefix prefixes generated MQTT client ids.
const clientIDPrefix = "soundswitch-"

// run is the serve logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting sound switch bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, db, err := openDatabase(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"database", cfg.Database.Path,
		"level", cfg.Logging.Level,
	)

	// Device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log.Component("device"))
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Handle mapping
	allocator := mapping.NewAllocator(mapping.NewSQLiteStore(db.DB))
	allocator.SetLogger(log.Component("mapping"))

	// MQTT
	clientID, err := resolveClientID(ctx, db, cfg.MQTT.Broker.ClientID)
	if err != nil {
		return fmt.Errorf("resolving MQTT client id: %w", err)
	}
	cfg.MQTT.Broker.ClientID = clientID

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", clientID,
	)

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	var points soundswitch.PointWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		points = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	// The hub exists before the bridge so discovery events reach clients.
	var hub *api.Hub
	var events soundswitch.EventPublisher
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		events = hub
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}

	// Bridge
	bridge, err := soundswitch.NewBridge(soundswitch.Options{
		Config:     bridgeConfig(cfg, clientID),
		MQTTClient: mqttClient,
		Devices:    deviceRegistry,
		Allocator:  allocator,
		Points:     points,
		Events:     events,
		Metrics:    soundswitch.NewMetrics(prometheus.DefaultRegisterer),
		Logger:     log.Component("soundswitch"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	deviceRegistry.SetCommandHandler(bridge.HandleUserCommand)
	deviceRegistry.SetRemoveHandler(bridge.HandleDeviceRemoved)

	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	// API
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.Component("api"),
			Registry:    deviceRegistry,
			Bridge:      bridge,
			Mappings:    allocator,
			MQTT:        mqttClient,
			Gatherer:    prometheus.DefaultGatherer,
			ExternalHub: hub,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g.Go(func() error {
		watchHealth(gctx, cfg.HealthInterval(), log, db, mqttClient, influxClient)
		return nil
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Bridge (publishes its stopping status)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	return nil
}

// resolveClientID returns the configured client id, or the one persisted in
// settings, generating and storing a new one on first run.
func resolveClientID(ctx context.Context, db *database.DB, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return db.SettingOrInit(ctx, database.SettingMQTTClientID, func() string {
		return clientIDPrefix + uuid.NewString()
	})
}

// bridgeConfig maps the zwave config section onto the bridge settings.
func bridgeConfig(cfg *config.Config, bridgeID string) soundswitch.Config {
	return soundswitch.Config{
		Scheme: zwave.TopicScheme{
			Prefix:         cfg.ZWave.Prefix,
			ClientsSegment: cfg.ZWave.ClientsSegment,
			GatewayMarker:  cfg.ZWave.GatewayMarker,
			CommandClass:   cfg.ZWave.CommandClass,
		},
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // Validate bounds QoS to 0-2
		HealthInterval: cfg.HealthInterval(),
		BridgeID:       bridgeID,
		Version:        version,
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// watchHealth repeats healthCheck every interval until ctx is cancelled,
// logging failures and recoveries.
func watchHealth(ctx context.Context, interval time.Duration, log *logging.Logger, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := healthCheck(ctx, db, mqttClient, influxClient)
			switch {
			case err != nil && ctx.Err() == nil:
				log.Warn("health check failed", "error", err)
				healthy = false
			case err == nil && !healthy:
				log.Info("health check recovered")
				healthy = true
			}
		}
	}
}
