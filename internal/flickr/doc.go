// Package flickr implements the uploader.Remote capability set against the
// Flickr REST and upload APIs.
//
// Requests are signed with the legacy api_sig scheme: the md5 hex digest of
// the shared secret followed by every parameter name and value, sorted by
// name. REST responses are requested as JSON; the upload endpoint always
// answers in XML.
//
// Read-only calls (album listing, token checks) are retried with exponential
// backoff on transport errors and 5xx responses. Uploads and album mutations
// are never retried here; the orchestrator decides what happens next.
package flickr
