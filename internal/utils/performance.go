package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperation is the duration past which OperationTimer warns
const SlowOperation = 30 * time.Second

// OperationTimer logs how long an operation took when the returned func runs
//
// Usage:
//
//	defer utils.OperationTimer("fetch_prices", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	return operationTimer(operation, log, time.Now)
}

func operationTimer(operation string, log zerolog.Logger, now func() time.Time) func() {
	start := now()

	return func() {
		duration := now().Sub(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > SlowOperation {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}
	}
}
