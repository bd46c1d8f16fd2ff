package annotation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingClassMapping marks a label that has no entry in the class mapping.
var ErrMissingClassMapping = errors.New("missing class mapping")

// MissingClassMappingError lists every label in the export that the class
// mapping does not cover.
type MissingClassMappingError struct {
	Labels []string
}

func (e *MissingClassMappingError) Error() string {
	quoted := make([]string, 0, len(e.Labels))
	for _, label := range e.Labels {
		quoted = append(quoted, strconv.Quote(label))
	}
	return fmt.Sprintf("%s for labels: %s", ErrMissingClassMapping, strings.Join(quoted, ", "))
}

func (e *MissingClassMappingError) Is(target error) bool {
	return target == ErrMissingClassMapping
}
