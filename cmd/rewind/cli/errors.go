package cli

// SilentError wraps an error whose message has already been printed to the
// user. main checks for it to avoid printing the same failure twice.
type SilentError struct {
	err error
}

// NewSilentError wraps err so main skips printing it.
func NewSilentError(err error) *SilentError {
	return &SilentError{err: err}
}

func (e *SilentError) Error() string {
	return e.err.Error()
}

func (e *SilentError) Unwrap() error {
	return e.err
}
