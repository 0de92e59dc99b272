// Package form implements the activity selection form: which activity is
// selected, what the status region shows, and the two-step submission that
// resolves the current device and creates a log record for it.
//
// Controller state is owned by a single event loop. Submit and Complete must
// be called from that loop; Submission.Run is safe to execute elsewhere
// because it never touches the controller.
package form
