package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks configuration problems detected before any
	// collaborator work starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnavailable marks a foundational collaborator (catalog fetch or
	// tracking store) being unreachable; it fails the whole run.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrTransient marks failures scoped to a single candidate or command;
	// callers recover locally and continue the batch.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation string, err error) error {
	detail := buildDetail(component, operation)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailsRun reports whether an error should abort the surrounding run rather
// than be recorded against a single candidate.
func FailsRun(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation string) string {
	parts := make([]string, 0, 2)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
