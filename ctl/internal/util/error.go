package util

// CtlExitCode is the process exit code a command hands back to main. Scripts key off these, so the
// values are stable: 0 success, 1 general failure, 2 partial success (some paths or mounts
// succeeded, some did not).
type CtlExitCode int

const (
	Success CtlExitCode = iota
	GeneralError
	PartialSuccess
)

func (c CtlExitCode) String() string {
	switch c {
	case Success:
		return "Success"
	case GeneralError:
		return "General Error"
	case PartialSuccess:
		return "Partial Success"
	default:
		return "Unknown"
	}
}

// CtlError pairs an error with the exit code the process should terminate with. Commands return it
// up through cobra so main can pick the code off with errors.As.
type CtlError struct {
	inner    error
	exitCode CtlExitCode
}

func NewCtlError(err error, exitCode CtlExitCode) CtlError {
	return CtlError{inner: err, exitCode: exitCode}
}

func (err *CtlError) GetExitCode() int {
	return int(err.exitCode)
}

func (err CtlError) Error() string {
	return err.inner.Error()
}

func (err CtlError) Unwrap() error {
	return err.inner
}
