package script

import "errors"

// ErrRunnerClosed is returned when running a script on a closed runner.
var ErrRunnerClosed = errors.New("script runner is closed")
