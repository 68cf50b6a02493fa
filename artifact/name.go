package artifact

import (
	"strings"
	"time"
)

// DateLayout is the date stamp embedded in artifact names (DD-MM-YYYY).
const DateLayout = "02-01-2006"

// Name describes the file name of one artifact.
type Name struct {
	Host   string    // Hostname, sanitized on render
	Date   time.Time // Logical backup date
	Suffix string    // Optional discriminator, e.g. "globals"
	Ext    string    // Extension without leading dot, e.g. "sql" or "tgz"
	Sep    string    // Separator between host and date; defaults to "-"
}

func (n Name) sep() string {
	if n.Sep == "" {
		return "-"
	}
	return n.Sep
}

func (n Name) tail() string {
	t := "." + strings.TrimPrefix(n.Ext, ".")
	if n.Suffix != "" {
		t = "_" + n.Suffix + t
	}
	return t
}

// String renders the file name.
func (n Name) String() string {
	return SanitizeHost(n.Host) + n.sep() + n.Date.Format(DateLayout) + n.tail()
}

// WithExt returns a copy of n with a different extension.
func (n Name) WithExt(ext string) Name {
	n.Ext = ext
	return n
}

// Pattern returns the shell-style glob describing the set n belongs to.
func (n Name) Pattern() string {
	return SanitizeHost(n.Host) + n.sep() + "*" + n.tail()
}

// Match reports whether filename belongs to the same set as n and returns
// the date embedded in it.
func (n Name) Match(filename string) (time.Time, bool) {
	prefix := SanitizeHost(n.Host) + n.sep()
	tail := n.tail()
	if !strings.HasPrefix(filename, prefix) || !strings.HasSuffix(filename, tail) {
		return time.Time{}, false
	}
	if len(filename) < len(prefix)+len(tail) {
		return time.Time{}, false
	}

	stamp := filename[len(prefix) : len(filename)-len(tail)]
	if len(stamp) != len(DateLayout) {
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(DateLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// SanitizeHost makes a hostname safe to embed in a file name and a glob.
// Anything outside [A-Za-z0-9.-_] becomes "-".
func SanitizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown-host"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, host)
}
