// internal/app/system/limits/limits.go
package limits

import "time"

// Request body size limits.
const (
	// MaxSubmissionBody caps a public organization request.
	MaxSubmissionBody = 64 << 10 // 64 KB

	// MaxAdminBody caps review-console and login bodies.
	MaxAdminBody = 8 << 10 // 8 KB
)

// Rate limits for unauthenticated endpoints.
const (
	SubmissionsPerIP     = 20
	SubmissionWindow     = time.Hour
	LoginAttemptsPerIP   = 10
	LoginIPWindow        = time.Minute
	LoginAttemptsPerUser = 5
	LoginUserWindow      = 5 * time.Minute
)

// MaxSweepBatch bounds how many expiration checks one sweep performs.
const MaxSweepBatch = 500
