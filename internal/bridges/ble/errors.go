package ble

import "errors"

// Domain errors for the BLE scanner bridge package.
var (
	// ErrNotConnected is returned when a command is issued while the MQTT
	// client has no broker connection.
	ErrNotConnected = errors.New("ble: not connected to broker")

	// ErrCommandFailed is returned when a command could not be published.
	ErrCommandFailed = errors.New("ble: command send failed")

	// ErrMalformedPayload is returned when a callback payload cannot be decoded.
	ErrMalformedPayload = errors.New("ble: malformed payload")

	// ErrScannerFailure wraps failures the scanner reports on its error topic.
	ErrScannerFailure = errors.New("ble: scanner reported failure")

	// ErrNotStarted is returned when callbacks arrive before Start.
	ErrNotStarted = errors.New("ble: bridge not started")
)
