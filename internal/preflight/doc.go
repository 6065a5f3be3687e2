// Package preflight provides readiness checks for the paths and remote
// account uploadr depends on.
//
// These checks run in two contexts:
//   - daemonrun calls Local before the first pass and refuses to start when the
//     media directory cannot be renamed into, since every upload would then be
//     repeated on the next pass.
//   - The CLI "config validate" and "status" commands print the results.
package preflight
