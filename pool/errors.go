package pool

import "errors"

var errPoolStopped = errors.New("pool: stopped")
