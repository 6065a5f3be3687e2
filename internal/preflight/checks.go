package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"uploadr/internal/flickr"
)

const remoteCheckTimeout = 30 * time.Second

// CheckDirectoryAccess verifies path is a directory the process can list and
// rename entries in.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTokenCached reports whether an auth token has been saved.
func CheckTokenCached(path string) Result {
	const name = "Auth token"
	_, err := flickr.NewTokenStore(path).Load()
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: path}
	case errors.Is(err, flickr.ErrNoToken):
		return Result{Name: name, Detail: "not cached; run 'uploadr auth'"}
	default:
		return Result{Name: name, Detail: err.Error()}
	}
}

// CheckRemote validates the token against the remote service with a single
// bounded attempt.
func CheckRemote(ctx context.Context, checker TokenChecker) Result {
	const name = "Flickr account"
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()

	info, err := checker.CheckToken(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (perms: %s)", info.Username, info.Perms)}
}
