package permissions

import "fmt"

// Level is a device permission level. Levels form a total order: a grant at a
// given level satisfies any requirement at or below it.
type Level int

const (
	LevelView Level = iota + 1
	LevelRead
	LevelWrite
	LevelControl
)

var levelNames = map[Level]string{
	LevelView:    "view",
	LevelRead:    "read",
	LevelWrite:   "write",
	LevelControl: "control",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Satisfies reports whether a grant at level l clears the required level.
func (l Level) Satisfies(required Level) bool {
	return l >= required
}

func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown permission level %q", s)
}
