// Package media models local media files and their upload status.
//
// Status is encoded entirely in the file name: a base name of the form
// <prefix><remote id>_<original name> is Uploaded, anything else is Pending.
// The checkpoint rename that produces that name is the single durable commit
// of a successful upload, so status can always be recovered from the file
// system alone after a crash.
package media
