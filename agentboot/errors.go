package agentboot

import "fmt"

// ModelError marks a run that failed because the model call itself failed.
type ModelError struct {
	Turn int
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed on turn %d: %v", e.Turn, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
