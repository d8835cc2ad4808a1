// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrInvalidName is returned for names that cannot be used as a
	// socket file name.
	ErrInvalidName = errors.New("invalid session name")

	// ErrNameSpaceExhausted is returned when no free generated name was
	// found within MaxNameAttempts draws.
	ErrNameSpaceExhausted = errors.New("no unused session name found")
)

// MaxNameAttempts bounds GenerateName.
const MaxNameAttempts = 1000

// ValidateName rejects names that are empty or blank, are "." or "..",
// or contain a path separator.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.Contains(name, "/"):
		return fmt.Errorf("%w: %q contains '/'", ErrInvalidName, name)
	}
	return nil
}

// isSessionSocketName reports whether a socket directory entry follows
// the session socket naming convention. Dot-prefixed entries are the
// server's own lock and log files.
func isSessionSocketName(name string) bool {
	return ValidateName(name) == nil && !strings.HasPrefix(name, ".")
}

// GenerateName draws adjective-noun names from random until it finds
// one not in taken. It gives up after MaxNameAttempts draws.
func GenerateName(random *rand.Rand, taken map[string]bool) (string, error) {
	for range MaxNameAttempts {
		name := adjectives[random.IntN(len(adjectives))] + "-" + nouns[random.IntN(len(nouns))]
		if !taken[name] {
			return name, nil
		}
	}
	return "", ErrNameSpaceExhausted
}

// The word lists avoid combinations that read badly together. Growing
// either list should be done with the birthday bound in mind: with
// about 4000 combinations a handful of concurrent sessions already has
// a measurable chance of colliding on the first draw.
var adjectives = []string{
	"amber", "ample", "ardent", "azure", "balmy", "bold", "breezy", "bright",
	"brisk", "calm", "candid", "cheery", "civic", "clever", "cobalt", "cosmic",
	"crisp", "dapper", "deft", "eager", "earnest", "elated", "fair", "fleet",
	"frank", "gentle", "gilded", "glad", "golden", "hardy", "hearty", "humble",
	"jaunty", "jovial", "keen", "lively", "lucid", "mellow", "merry", "misty",
	"nimble", "noble", "oaken", "orange", "placid", "plucky", "polar", "proud",
	"quick", "quiet", "radiant", "rapid", "russet", "sage", "serene", "silver",
	"steady", "sunny", "swift", "tidy", "upbeat", "vivid", "warm", "witty",
}

var nouns = []string{
	"acorn", "albatross", "anchor", "badger", "banjo", "beacon", "bison", "bobcat",
	"canyon", "caribou", "cedar", "comet", "condor", "coral", "cricket", "delta",
	"dune", "falcon", "fern", "fjord", "gecko", "geyser", "glacier", "harbor",
	"heron", "ibis", "iris", "jackal", "kestrel", "koala", "lagoon", "lantern",
	"lynx", "mango", "maple", "marmot", "meadow", "meteor", "moose", "narwhal",
	"nebula", "octopus", "orchid", "otter", "pebble", "pelican", "pine", "puffin",
	"quail", "raven", "reef", "sparrow", "spruce", "summit", "tapir", "thistle",
	"toucan", "tundra", "violet", "walrus", "willow", "wombat", "yak", "zephyr",
}

// NameVariable is set in the environment of every session's shell to
// the session name.
const NameVariable = "LOOM_SESSION_NAME"
