package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// LevelTrace is a custom slog level below slog.LevelDebug used for
// message-level tracing.
const LevelTrace = slog.Level(-8)

// TargetLevel is the level configured for one target. An empty target is
// the default for every target without its own entry.
type TargetLevel struct {
	Target string
	Level  slog.Level
}

// String renders the entry the way it is written on the command line.
func (t TargetLevel) String() string {
	return t.Target + ":" + LevelLetter(t.Level)
}

// ParseVerbosity parses a comma separated list of "target:L" entries, where
// L is one of T, D, I, W, E. A missing or unknown letter means trace, so
// "rpcmsg" traces the rpcmsg target and ":D" sets the default to debug.
func ParseVerbosity(spec string) ([]TargetLevel, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var out []TargetLevel
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) > 2 {
			return nil, fmt.Errorf("invalid verbosity entry %q: expected target:level", entry)
		}
		letter := ""
		if len(parts) == 2 {
			letter = parts[1]
		}
		out = append(out, TargetLevel{Target: parts[0], Level: parseLetter(letter)})
	}
	return out, nil
}

func parseLetter(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D":
		return slog.LevelDebug
	case "I":
		return slog.LevelInfo
	case "W":
		return slog.LevelWarn
	case "E":
		return slog.LevelError
	default:
		return LevelTrace
	}
}

// LevelLetter returns the one-letter abbreviation of level.
func LevelLetter(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "T"
	case level < slog.LevelInfo:
		return "D"
	case level < slog.LevelWarn:
		return "I"
	case level < slog.LevelError:
		return "W"
	default:
		return "E"
	}
}

// Levels resolves the minimum level per target.
type Levels struct {
	def     slog.Level
	targets map[string]slog.Level
}

// NewLevels builds a level table. The default is Info unless an entry with
// an empty target overrides it.
func NewLevels(entries []TargetLevel) *Levels {
	l := &Levels{def: slog.LevelInfo, targets: make(map[string]slog.Level)}
	for _, e := range entries {
		if e.Target == "" {
			l.def = e.Level
			continue
		}
		l.targets[e.Target] = e.Level
	}
	return l
}

// Level returns the minimum level for target.
func (l *Levels) Level(target string) slog.Level {
	if lvl, ok := l.targets[target]; ok {
		return lvl
	}
	return l.def
}

// Min returns the lowest level of any target.
func (l *Levels) Min() slog.Level {
	m := l.def
	for _, lvl := range l.targets {
		m = min(m, lvl)
	}
	return m
}

// String lists the effective levels, default first.
func (l *Levels) String() string {
	parts := []string{TargetLevel{Level: l.def}.String()}
	for target, lvl := range l.targets {
		parts = append(parts, TargetLevel{Target: target, Level: lvl}.String())
	}
	sort.Strings(parts[1:])
	return strings.Join(parts, ",")
}
