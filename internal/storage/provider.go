package storage

import "argus/internal/ports"

// Store is the snapshot store contract shared by the daemon and the storage
// handler. It is an alias to ports.SnapshotStore to keep call-sites simple.
type Store = ports.SnapshotStore
