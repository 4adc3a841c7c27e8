// Package config loads and validates the sound switch bridge configuration.
//
// Values are resolved in this order:
//  1. Built-in defaults
//  2. The YAML file
//  3. SOUNDSWITCH_<SECTION>_<KEY> environment variables
//
// Validate then reports every problem at once.
//
// Secrets (MQTT password, InfluxDB token) are best supplied through the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.ZWave.Prefix)
package config
