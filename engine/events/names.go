package events

import (
	"regexp"
	"strings"
)

var (
	invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9 ,/.]`)
	nameDelimiters   = regexp.MustCompile(`[ ,/]+`)
	// a parsed topic or namespace never contains a delimiter or a dot
	invalidPartChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// parsedName is a single resolved event specifier. qualified records whether the
// caller wrote an explicit namespace, which changes how Emit and Off interpret it.
type parsedName struct {
	topic     Topic
	namespace Namespace
	qualified bool
}

// ParseNames resolves a delimiter-separated list of event specifiers into keys.
// Specifiers are separated by commas, slashes or spaces and take the form "topic" or
// "topic.namespace"; characters outside [A-Za-z0-9 ,/.] are stripped first. A missing
// namespace resolves to DefaultNamespace. Empty specifiers are dropped.
//
// Parameters:
//   - names: the raw specifier list, e.g. "tick.pointer resize"
//
// Returns:
//   - []Key: the resolved keys in input order
func ParseNames(names string) []Key {
	parsed := parseNames(names)
	keys := make([]Key, 0, len(parsed))
	for _, p := range parsed {
		keys = append(keys, Key{Topic: p.topic, Namespace: p.namespace})
	}
	return keys
}

func parseNames(names string) []parsedName {
	cleaned := invalidNameChars.ReplaceAllString(names, "")
	var out []parsedName
	for _, part := range nameDelimiters.Split(cleaned, -1) {
		if part == "" {
			continue
		}
		out = append(out, parseName(part))
	}
	return out
}

func parseName(name string) parsedName {
	topic, namespace, found := strings.Cut(name, ".")
	p := parsedName{topic: Topic(topic), namespace: DefaultNamespace}
	if found {
		// only the first qualifier counts, "a.b.c" is topic a in namespace b
		namespace, _, _ = strings.Cut(namespace, ".")
		if namespace != "" {
			p.namespace = Namespace(namespace)
			p.qualified = true
		}
	}
	return p
}

// normalizeKey reduces a typed key to the form parseNames produces, so Subscribe and
// Trigger address the same lists as On and Emit. An emptied namespace falls back to
// DefaultNamespace.
func normalizeKey(key Key) Key {
	key.Topic = Topic(invalidPartChars.ReplaceAllString(string(key.Topic), ""))
	key.Namespace = Namespace(invalidPartChars.ReplaceAllString(string(key.Namespace), ""))
	if key.Namespace == "" {
		key.Namespace = DefaultNamespace
	}
	return key
}
