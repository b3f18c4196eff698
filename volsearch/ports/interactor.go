// Package ports holds the interfaces the host program implements for the
// user-facing side of a run.
package ports

// Interactor reports progress of a build and query session to the user.
type Interactor interface {
	Output(message string)
	Warning(message string)
	Error(message string, err error)
	StartProgress(message string)
	StopProgress(success bool, message string)
}
