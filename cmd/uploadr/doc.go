// Command uploadr synchronizes a local media tree to Flickr.
//
// Each directory below the media root becomes an album named after its
// relative path. Uploaded files are renamed with the processed prefix and the
// remote photo id, so the tree itself records what has been uploaded and a
// crashed or interrupted run simply resumes on the next invocation.
//
// Exit codes: 0 success, 1 failure, 2 another instance is running, 3
// configuration is missing or invalid.
package main
