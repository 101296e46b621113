package savefile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/ttsync/internal/tags"
)

var (
	ErrAmbiguousTag  = errors.New("ambiguous tag")
	ErrUnknownObject = errors.New("unknown object")
	ErrMalformedSave = errors.New("malformed save")
)

// AmbiguousTagError reports an object carrying more than one valid tag in
// one namespace. It matches ErrAmbiguousTag.
type AmbiguousTagError struct {
	GUID      string
	Namespace tags.Namespace
	Tags      []string
}

func (e *AmbiguousTagError) Error() string {
	return fmt.Sprintf("%s has multiple valid %s tags: %s", e.GUID, e.Namespace, strings.Join(e.Tags, ", "))
}

func (e *AmbiguousTagError) Is(target error) bool {
	return target == ErrAmbiguousTag
}

// UnknownObjectError reports an identifier that is not in the save.
type UnknownObjectError struct {
	GUID string
}

func (e *UnknownObjectError) Error() string {
	return fmt.Sprintf("%s does not exist", e.GUID)
}

func (e *UnknownObjectError) Is(target error) bool {
	return target == ErrUnknownObject
}
