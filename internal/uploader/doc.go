// Package uploader implements the per-pass upload state machine.
//
// A pass lists remote albums once, then walks the scanner's candidates in
// order. Each Pending file moves Pending -> Selected -> Uploading and ends
// either Uploaded (remote upload plus checkpoint rename) or Failed (left
// Pending for a later pass). Album membership is reconciled after the commit:
// known albums get the photo added, unknown albums are created with the photo
// as primary and the album list is fetched again.
//
// The in-flight marker brackets every upload so a crash leaves a breadcrumb
// naming the file. Shutdown is checked only between files; once a file is
// selected its whole transition runs to completion on a context that ignores
// cancellation.
package uploader
