package bus

import "argus/internal/ports"

// Bus is the event bus contract shared by the daemon and the broadcast
// handler. It is an alias to ports.EventBus to keep call-sites simple.
type Bus = ports.EventBus
