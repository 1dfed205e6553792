package extract

import (
	"io"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// DesktopEntry holds the keys of a freedesktop .desktop launcher that matter
// for icon lookup.
type DesktopEntry struct {
	Name    string
	Exec    string
	TryExec string
	Icon    string
}

// desktopGroup is the group holding launcher keys; action groups are ignored.
const desktopGroup = "Desktop Entry"

// desktopLoadOptions keeps values verbatim. Exec quoting is handled by
// splitExec.
var desktopLoadOptions = ini.LoadOptions{
	KeyValueDelimiters:      "=",
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
	SkipUnrecognizableLines: true,
}

// ParseDesktopEntry reads the [Desktop Entry] group of r. Localized keys
// such as Icon[de] are ignored.
func ParseDesktopEntry(r io.Reader) (DesktopEntry, error) {
	f, err := ini.LoadSources(desktopLoadOptions, r)
	if err != nil {
		return DesktopEntry{}, err
	}
	sec, err := f.GetSection(desktopGroup)
	if err != nil {
		// No launcher group: nothing to resolve.
		return DesktopEntry{}, nil //nolint:nilerr // missing group is an empty entry
	}
	return DesktopEntry{
		Name:    sec.Key("Name").String(),
		Exec:    sec.Key("Exec").String(),
		TryExec: sec.Key("TryExec").String(),
		Icon:    sec.Key("Icon").String(),
	}, nil
}

func readDesktopEntry(path string) (DesktopEntry, error) {
	f, err := os.Open(path) //nolint:gosec // launcher path supplied by the caller
	if err != nil {
		return DesktopEntry{}, err
	}
	defer f.Close()
	return ParseDesktopEntry(f)
}

// Program returns the executable named by the Exec key: the first
// argument, unquoted, with any leading env(1) assignments skipped.
// TryExec is used when Exec is empty.
func (de DesktopEntry) Program() string {
	args := splitExec(de.Exec)
	if len(args) > 0 && args[0] == "env" {
		args = args[1:]
		for len(args) > 0 && strings.Contains(args[0], "=") {
			args = args[1:]
		}
	}
	for _, a := range args {
		if strings.HasPrefix(a, "%") {
			continue
		}
		return a
	}
	return de.TryExec
}

// splitExec tokenizes an Exec value following the desktop entry quoting
// rules: arguments are separated by spaces and may be double-quoted with
// backslash escapes inside quotes.
func splitExec(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		escaped bool
		started bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}
