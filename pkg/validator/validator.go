// Package validator holds small checks used to validate configuration.
package validator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/neurodesk/tmplc/pkg/common"
)

// All joins every failed check so a config file reports all its problems
// at once. It returns nil when every check passed.
func All(checks ...error) error {
	return errors.Join(checks...)
}

// Each applies f to every item, naming the failing index.
func Each[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if strings.TrimSpace(field) == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NoDuplicates[T comparable](items []T, description string) error {
	first := make(map[T]int, len(items))
	for i, item := range items {
		if j, ok := first[item]; ok {
			return fmt.Errorf("%s[%d] repeats %s[%d] (%v)", description, i, description, j, item)
		}
		first[item] = i
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if slices.Contains(allowed, field) {
		return nil
	}
	choices := make([]string, len(allowed))
	for i, a := range allowed {
		choices[i] = fmt.Sprint(a)
	}
	return fmt.Errorf("%s must be one of %s, got %v", description, strings.Join(choices, ", "), field)
}

func NonNegative(n int, description string) error {
	if n < 0 {
		return fmt.Errorf("%s must not be negative, got %d", description, n)
	}
	return nil
}

// Identifier requires a valid JavaScript identifier that is not a keyword.
func Identifier(field, description string) error {
	if !common.IsIdentifier(field) || common.Keywords[field] {
		return fmt.Errorf("%s must be a JavaScript identifier, got %q", description, field)
	}
	return nil
}

// Extension requires a file extension with a leading dot.
func Extension(field, description string) error {
	if len(field) < 2 || field[0] != '.' || strings.ContainsAny(field, `/\`) {
		return fmt.Errorf("%s must look like \".ext\", got %q", description, field)
	}
	return nil
}

// HasNoTemplate rejects values containing template tags.
func HasNoTemplate(field string, description string) error {
	if field != "" && (strings.Contains(field, "{{") || strings.Contains(field, "{%")) {
		return fmt.Errorf("%s must not contain template tags", description)
	}
	return nil
}
