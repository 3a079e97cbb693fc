package engine

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

// NewTaskID returns a generated opaque task id for structured mode.
var NewTaskID = func() string { return "tsk_" + newULID() }

// NewGroupID returns a generated opaque group id for structured mode.
var NewGroupID = func() string { return "grp_" + newULID() }

// NewProjectID returns a generated opaque project id for structured mode.
var NewProjectID = func() string { return "prj_" + newULID() }

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

// LineID derives a file-mode task id from its 1-indexed source line. The file
// store addresses tasks by line, so ids in that mode are rederived on every
// re-parse.
func LineID(projectID string, line int) string {
	return fmt.Sprintf("%s-%d", projectID, line)
}
