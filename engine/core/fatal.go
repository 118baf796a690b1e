package core

import (
	"errors"
	"os"
)

// exit is swapped out by tests.
var exit = os.Exit

// HandleFatal is the one place that turns an error into process
// termination. It is meant to be called from main only; library code returns
// errors and never exits.
func HandleFatal(err error) {
	if err == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		LogFatal("%s at %s: %s", e.Kind, e.Location(), err.Error())
	} else {
		LogFatal("%s", err.Error())
	}
	exit(1)
}
