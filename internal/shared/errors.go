package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrCodeMissing      = fmt.Errorf("missing authorization code")
	ErrCodeConsumed     = fmt.Errorf("authorization code already used")
	ErrExchangeFailed   = fmt.Errorf("token exchange failed")
	ErrFetchFailed      = fmt.Errorf("data fetch failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Storage errors. Never surfaced to users; an unavailable store reads as empty.
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrUnknownDriver      = fmt.Errorf("unknown storage driver")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
