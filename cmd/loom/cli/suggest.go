// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestionThreshold is the largest edit distance worth suggesting.
const suggestionThreshold = 3

// ClosestMatch returns the candidate nearest to input by edit distance,
// or "" if none is within the suggestion threshold. Ties go to the
// earlier candidate.
func ClosestMatch(input string, candidates []string) string {
	best := ""
	bestDistance := suggestionThreshold + 1
	for _, candidate := range candidates {
		if distance := levenshtein(input, candidate); distance < bestDistance {
			bestDistance = distance
			best = candidate
		}
	}
	return best
}

// suggestCommand returns the closest visible subcommand name or alias.
func suggestCommand(unknown string, commands []*Command) string {
	var names []string
	for _, command := range commands {
		if command.Hidden {
			continue
		}
		names = append(names, command.Name)
		names = append(names, command.Aliases...)
	}
	return ClosestMatch(unknown, names)
}

// suggestFlag finds the first undefined flag in args and returns the
// closest defined flag, with its dash prefix.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var defined []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		defined = append(defined, f.Name)
	})

	for _, arg := range args {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if index := strings.IndexByte(name, '='); index >= 0 {
			name = name[:index]
		}
		if flagSet.Lookup(name) != nil || (len(name) == 1 && flagSet.ShorthandLookup(name) != nil) {
			continue
		}
		if best := ClosestMatch(name, defined); best != "" {
			return "--" + best
		}
		// Only the first unknown flag is considered.
		break
	}
	return ""
}

// levenshtein is the edit distance between a and b, computed over one
// reused row.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}
	for j := 1; j <= len(b); j++ {
		diagonal := row[0]
		row[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			above := row[i]
			row[i] = min(above+1, row[i-1]+1, diagonal+cost)
			diagonal = above
		}
	}
	return row[len(a)]
}
