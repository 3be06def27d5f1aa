// Package config loads presence service settings from YAML, then applies
// GRAYLOGIC_* environment overrides and validates the result.
//
// Secrets (broker and Redis passwords, the InfluxDB token, the JWT signing
// secret) belong in the environment rather than the file.
//
//	cfg, err := config.Load("configs/presence.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scanner := cfg.Presence.ScannerID
package config
