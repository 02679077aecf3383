package constants

import "time"

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // consecutive failures before OPEN
	ResetTimeout:        30 * time.Second, // retry delay when no health probe is set
	HealthCheckInterval: time.Minute,
	HealthCheckTimeout:  5 * time.Second,
}

var StringLimits = struct {
	ServerErrorBody   int
	ProtocolErrorBody int
}{
	ServerErrorBody:   1024, // runes kept in ServerError.Body
	ProtocolErrorBody: 256,  // runes of the raw body kept in ProtocolError context
}

var LoadTestConfig = struct {
	Workers   int
	Requests  int
	BatchSize int
}{
	Workers:   4,
	Requests:  100,
	BatchSize: 5,
}
