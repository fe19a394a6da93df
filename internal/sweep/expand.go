// Package sweep expands command templates containing parameter-sweep
// placeholders into concrete command lists.
//
// Two syntaxes are supported inside a single command string:
//
//	<[a,b,c]>  paired: all groups are zipped element-wise and must have
//	           the same number of options
//	<{a,b,c}>  independent: groups are expanded as a full cross product
//
// The two kinds cannot be mixed within one command.
package sweep

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrConflictingSweepSyntax indicates <[...]> and <{...}> were mixed in one command
	ErrConflictingSweepSyntax = errors.New("cannot mix <[...]> and <{...}> sweep syntax in the same command")

	// ErrMismatchedSweepLength indicates paired sweep groups of unequal length
	ErrMismatchedSweepLength = errors.New("paired sweep lists must have the same length")
)

var (
	pairedRe      = regexp.MustCompile(`<\[(.*?)\]>`)
	independentRe = regexp.MustCompile(`<\{(.*?)\}>`)
)

// Expand expands every command in commands, preserving input order.
// Each input command's expansions appear contiguously in generation order.
// Commands without sweep syntax are passed through unchanged.
func Expand(commands []string) ([]string, error) {
	var expanded []string

	for _, command := range commands {
		out, err := expandOne(command)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", command, err)
		}
		expanded = append(expanded, out...)
	}

	return expanded, nil
}

func expandOne(command string) ([]string, error) {
	paired := pairedRe.FindAllStringSubmatch(command, -1)
	independent := independentRe.FindAllStringSubmatch(command, -1)

	if len(paired) > 0 && len(independent) > 0 {
		return nil, ErrConflictingSweepSyntax
	}

	switch {
	case len(paired) > 0:
		return expandPaired(command, paired)
	case len(independent) > 0:
		return expandIndependent(command, independent)
	default:
		return []string{command}, nil
	}
}

// expandPaired zips the option lists positionally and emits one command per
// zipped tuple. Each group's placeholder is substituted at its first textual
// occurrence only; identical bracket text repeated in the command is consumed
// left to right, one occurrence per group.
func expandPaired(command string, matches [][]string) ([]string, error) {
	options := splitOptions(matches)

	length := len(options[0])
	for _, opts := range options {
		if len(opts) != length {
			return nil, ErrMismatchedSweepLength
		}
	}

	expanded := make([]string, 0, length)
	for i := 0; i < length; i++ {
		line := command
		for g, opts := range options {
			placeholder := "<[" + matches[g][1] + "]>"
			line = strings.Replace(line, placeholder, opts[i], 1)
		}
		expanded = append(expanded, line)
	}
	return expanded, nil
}

// expandIndependent emits the full cross product of all option lists, with
// the earliest group varying slowest.
func expandIndependent(command string, matches [][]string) ([]string, error) {
	options := splitOptions(matches)

	total := 1
	for _, opts := range options {
		total *= len(opts)
	}

	expanded := make([]string, 0, total)
	indices := make([]int, len(options))
	for n := 0; n < total; n++ {
		line := command
		for g, opts := range options {
			placeholder := "<{" + matches[g][1] + "}>"
			line = strings.Replace(line, placeholder, opts[indices[g]], 1)
		}
		expanded = append(expanded, line)

		// Advance the odometer, last group fastest.
		for g := len(indices) - 1; g >= 0; g-- {
			indices[g]++
			if indices[g] < len(options[g]) {
				break
			}
			indices[g] = 0
		}
	}
	return expanded, nil
}

// splitOptions splits each captured group body on commas, trimming whitespace.
func splitOptions(matches [][]string) [][]string {
	options := make([][]string, len(matches))
	for i, m := range matches {
		parts := strings.Split(m[1], ",")
		opts := make([]string, len(parts))
		for j, p := range parts {
			opts[j] = strings.TrimSpace(p)
		}
		options[i] = opts
	}
	return options
}
