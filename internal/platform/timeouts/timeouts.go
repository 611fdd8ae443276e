// Package timeouts holds durations shared by the collab runtime and tools.
package timeouts

import "time"

// Shutdown limits how long the runtime waits for in-flight gRPC calls
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Maintenance caps a single maintenance run when no timeout is configured.
const Maintenance = 2 * time.Minute

// SweepRun caps one periodic expiry sweep.
const SweepRun = 30 * time.Second
