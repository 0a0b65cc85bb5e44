// Package flagx lets several configuration layers share one argument list.
// Each layer picks out the flags it owns and hands them to its own
// flag.FlagSet, so unknown flags from other layers never fail a parse.
package flagx

import (
	"flag"
	"strings"
)

// split returns the flag name of arg without leading dashes and whether
// arg carries its value inline ("-t=5m"). ok is false for non-flags.
func split(arg string) (name string, inline bool, ok bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false, false
	}
	name = strings.TrimLeft(arg, "-")
	if name == "" {
		return "", false, false
	}
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i], true, true
	}
	return name, false, true
}

// FilterArgs returns the subset of args made of allowedFlags and their
// values, in their original order.
//
// Flag names match with one or two leading dashes, the same way package
// flag accepts them. Both "-a value" and "-a=value" forms are recognised; a
// following argument that starts with "-" is never consumed as a value.
// Nothing after a "--" terminator is returned.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[strings.TrimLeft(f, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
		name, inline, ok := split(args[i])
		if !ok {
			continue
		}
		if _, keep := allowed[name]; !keep {
			continue
		}

		filtered = append(filtered, args[i])
		if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			filtered = append(filtered, args[i])
		}
	}
	return filtered
}

// ConfigFile returns the path given with -c or -config, or "" when
// neither is present. The last occurrence wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"c", "config"}))

	return path
}
