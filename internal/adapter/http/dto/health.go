package dto

// DependencyCheck is the result of probing one backing service.
type DependencyCheck struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse is returned by the readiness probe.
type HealthResponse struct {
	OK       bool            `json:"ok"`
	Status   string          `json:"status"`
	Postgres DependencyCheck `json:"postgres"`
	Redis    DependencyCheck `json:"redis"`
}
