// Package pkg provides shared utilities for the ublox-short-range-go driver.
//
// This package contains common functionality used across the EDM codec,
// digester, AT client, socket, and network layers, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types shared by every layer of the driver
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentNetwork, "wifi joined", "ssid", ssid)
//
// # Errors
//
// Common driver errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrTimeout) {
//	    // retry the command
//	}
package pkg
