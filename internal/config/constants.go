package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 15 * time.Second
)

// Request queue sizing shared by both HTTP processes
const (
	RequestQueueSize    = 10
	RequestQueueWorkers = 10
)

// Admin query defaults
const (
	DefaultVisitorWindow = 30 * time.Minute
	DefaultListLimit     = 100
	MaxListLimit         = 500
)

const DBPingTimeout = 5 * time.Second
