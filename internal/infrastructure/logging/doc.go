// Package logging provides the bridge's structured logger, a thin wrapper over
// log/slog.
//
// Every record carries service=soundswitch and the build version. Components
// add their own name with Component:
//
//	logger := logging.New(cfg.Logging, version)
//	bridgeLog := logger.Component("soundswitch")
//	bridgeLog.Info("node discovered", "node_id", 12)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Common keys: node_id, endpoint_id, attribute, handle, topic, error.
package logging
