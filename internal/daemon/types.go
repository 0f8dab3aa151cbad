package daemon

// StartOptions configures the daemon (home, port, DB, recovery sweep, otel).
type StartOptions struct {
	Home          string
	Port          int
	Dev           bool
	PprofAddr     string
	Workspace     string  // root for agent file tools; defaults under Home
	DBDriver      string  // "sqlite" (default) or "postgres"
	DBURL         string  // for postgres: connection string (or DATABASE_URL env)
	RecoverySec   float64 // recovery sweep interval in seconds
	MaxConcurrent int     // max tasks the recovery sweep re-executes at once
	EnableOtel    bool    // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE/task/agent instrumentation)
	Version       string  // reported by /config
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
