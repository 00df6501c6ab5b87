package credential

import "errors"

// Errors returned by credential providers.
//
// Callers distinguish "needs setup" from "store broken" with errors.Is:
//
//	if errors.Is(err, credential.ErrNoCredential) {
//	    // prompt the user to log in
//	}
var (
	// ErrNoCredential is returned when no API credential has been stored.
	ErrNoCredential = errors.New("no credential configured")

	// ErrStorageUnavailable is returned when the credential store exists
	// but cannot be read or written.
	ErrStorageUnavailable = errors.New("credential storage unavailable")
)
