package reports

type errNotFound struct{}

func (errNotFound) Error() string { return "report run not found" }

// ErrNotFound is returned when a report run does not exist.
var ErrNotFound = errNotFound{}

// Error codes recorded on failed runs.
const (
	ErrorCodeSnapshotEmpty = "snapshot_empty"
	ErrorCodeSnapshotFetch = "snapshot_fetch_failed"
	ErrorCodeEngine        = "engine_failed"
	ErrorCodeInternal      = "internal_error"
)
