// Package errmsg maps the error kinds enumerated in spec §7 to CLI exit
// codes and one-line user-facing messages. It is the only place that
// translates an internal structured error into something printed to a
// terminal; no component below the CLI prints directly.
package errmsg

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the component that raised it and the
// recovery spec §7 assigns it.
type Kind int

const (
	KindUnknown Kind = iota
	KindLayout
	KindRepoExists
	KindRepoMissing
	KindRecipeMalformed
	KindFetchFailed
	KindFetchTimeout
	KindNoBuildSystem
	KindBuildFailed
	KindBuildTimeout
	KindUnsatisfiable
	KindCacheError
	KindCacheCorrupt
	KindNoPreviousGeneration
	KindLockHeld
	KindUserError
)

// Kinded is implemented by every structured error pygr components
// return so the CLI boundary can classify it without a type switch per
// component.
type Kinded interface {
	error
	ErrorKind() Kind
}

// ExitCode returns the process exit code for an error per spec §6:
// 0 success (never reached here), 1 user error, 2 system error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var k Kinded
	if errors.As(err, &k) {
		switch k.ErrorKind() {
		case KindRepoExists, KindRepoMissing, KindRecipeMalformed,
			KindUnsatisfiable, KindNoPreviousGeneration, KindUserError,
			KindNoBuildSystem:
			return 1
		default:
			return 2
		}
	}
	return 2
}

// Message renders a one-line, user-facing message for err. Internal
// errors never cross this boundary as stack traces: whatever detail a
// component captured (e.g. captured build output) is already folded
// into the error's Error() string by the component itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("error: %v", err)
}
