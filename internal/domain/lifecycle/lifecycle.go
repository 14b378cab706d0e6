// Package lifecycle holds process lifecycle constants shared by the transports.
package lifecycle

import "time"

// DefaultTimeout bounds graceful shutdown of a server
const DefaultTimeout = 10 * time.Second
