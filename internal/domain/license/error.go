package license

import "errors"

var (
	ErrMissingCredentials = errors.New("missing license credentials")
	ErrDenied             = errors.New("license denied")
	ErrUnavailable        = errors.New("license storage unavailable")
	ErrLicenseNotFound    = errors.New("license not found")
)
