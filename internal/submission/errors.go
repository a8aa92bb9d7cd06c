package submission

import "errors"

// Admission failures, in the order the gate checks them. Handlers map
// these onto HTTP statuses; ErrBanned deliberately maps to 400 rather
// than 403 to stay compatible with existing clients.
var (
	ErrProblemNotFound    = errors.New("problem not found")
	ErrRateLimited        = errors.New("you submitted too many submissions")
	ErrLanguageNotAllowed = errors.New("language not allowed for this problem")
	ErrBanned             = errors.New("banned from submitting")
)
