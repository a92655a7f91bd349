package outbox

import "errors"

var errQueueFull = errors.New("outbox: queue full")
