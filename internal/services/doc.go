// Package services defines the error taxonomy and context helpers shared by
// the upload pipeline.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper, so every failure can be
//     classified with errors.Is into file, pass or process scope.
//   - Context helpers that stamp run IDs, pass numbers, album names and file
//     paths for structured logging.
package services
