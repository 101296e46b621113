package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousGlobal reports that more than one global script file
	// exists.
	ErrAmbiguousGlobal = errors.New("ambiguous global script")
	// ErrNoTarget reports an attach without any object identifier.
	ErrNoTarget = errors.New("no target object")
)

// AmbiguousGlobalError names the conflicting global script files.
type AmbiguousGlobalError struct {
	Files []string
}

func (e *AmbiguousGlobalError) Error() string {
	return fmt.Sprintf("%s both exist in the project root", strings.Join(e.Files, " and "))
}

func (e *AmbiguousGlobalError) Is(target error) bool { return target == ErrAmbiguousGlobal }
