package domain

import "time"

// Upstream identifies one of the two external payment processors.
type Upstream string

const (
	UpstreamDefault  Upstream = "default"
	UpstreamFallback Upstream = "fallback"
)

// Upstreams lists both processors in routing priority order.
func Upstreams() [2]Upstream {
	return [2]Upstream{UpstreamDefault, UpstreamFallback}
}

// HealthState is the shared, cross-instance health record for one upstream.
// It is written only by the health monitor under a per-upstream lock and read
// by the strategy decider and the attempt executor.
type HealthState struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastCheckedAt       time.Time `json:"lastCheckedAt"`
}

// HealthyState is the optimistic default used when no record exists yet.
func HealthyState() HealthState {
	return HealthState{ConsecutiveFailures: 0, LastCheckedAt: time.Now()}
}

// Reliable reports whether the state can be trusted as healthy: failures are
// below the threshold and the data is not stale.
func (s HealthState) Reliable(failureThreshold int, maxAge time.Duration, now time.Time) bool {
	return s.ConsecutiveFailures < failureThreshold && now.Sub(s.LastCheckedAt) < maxAge
}

// ServiceHealth is the body returned by an upstream's health endpoint.
type ServiceHealth struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}
