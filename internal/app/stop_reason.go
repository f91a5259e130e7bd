package app

// StopReason is recorded in the log and in the session summary.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopQuit       StopReason = "quit"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)
