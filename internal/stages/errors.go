package stages

import "fmt"

// StageFailure reports an external tool that failed or produced no usable
// output. It stops the sample's chain but never the run.
type StageFailure struct {
	Stage   string
	Sample  string
	Message string
	Cause   error
}

func (e *StageFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stage %s failed for %s: %s: %v", e.Stage, e.Sample, e.Message, e.Cause)
	}
	return fmt.Sprintf("stage %s failed for %s: %s", e.Stage, e.Sample, e.Message)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}
