package retry

// Error lets an operation decide whether its failure is worth retrying.
// When Temporary reports false, the retry loop stops and returns the error.
type Error interface {
	Temporary() bool
	error
}

type permanentError struct {
	error
}

func (e *permanentError) Temporary() bool { return false }

func (e *permanentError) Unwrap() error {
	return e.error
}

// Abort marks err as permanent. Do returns the unwrapped err without
// further attempts.
func Abort(err error) Error {
	return &permanentError{err}
}
