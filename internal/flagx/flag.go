// Package flagx lets several components parse their own subset of the
// command line without tripping over each other's flags.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the flags named in allowed, together with their
// values. Both "-f value" and "-f=value" forms are understood; a following
// token that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowed []string) []string {
	names := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		names[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := names[name]; ok {
				out = append(out, arg)
			}
			continue
		}

		if _, ok := names[arg]; !ok {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}

	return out
}

// ConfigFileFlag returns the value of -c / -config found in args, or "" when
// neither is present. All other flags are ignored.
func ConfigFileFlag(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
