package script

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownLevel = errors.New("unknown sophistication level")

type Level int

const (
	Beginner     Level = 1
	Intermediate Level = 2
	Advanced     Level = 3
)

// ParseLevel accepts the numeric form or any of the level names. An empty
// string means Beginner.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", "beginner", "basic":
		return Beginner, nil
	case "2", "intermediate", "medium":
		return Intermediate, nil
	case "3", "advanced", "expert":
		return Advanced, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

func (l Level) String() string {
	switch l {
	case Intermediate:
		return "intermediate"
	case Advanced:
		return "advanced"
	}
	return "beginner"
}

// Description is the audience phrase used in prompts.
func (l Level) Description() string {
	switch l {
	case Intermediate:
		return "intermediate level, assuming basic knowledge of the subject"
	case Advanced:
		return "advanced level, using sophisticated concepts and terminology appropriate for advanced students"
	}
	return "beginner-friendly, using simple language and basic concepts"
}

// SceneCount is how many visual scenes a script of the given length plans for.
func SceneCount(minutes int) int {
	switch {
	case minutes <= 3:
		return 3
	case minutes <= 5:
		return 4
	case minutes <= 7:
		return 5
	}
	return 6
}
