package deployment

import (
	"os"
	"strings"
	"time"

	"pullhook/internal/security"
	"pullhook/pkg/fileutil"
)

// TouchStatus describes what happened to one watched path.
type TouchStatus string

const (
	TouchTouched  TouchStatus = "touched"
	TouchMissing  TouchStatus = "missing"
	TouchRejected TouchStatus = "rejected"
	TouchFailed   TouchStatus = "failed"
)

// touchFile updates a path's timestamps; replaced in tests.
var touchFile = fileutil.Touch

// TouchOutcome is the per-path result of Touch.
type TouchOutcome struct {
	Path   string
	Status TouchStatus
	Err    error
}

// OK reports whether the path was touched.
func (o TouchOutcome) OK() bool {
	return o.Status == TouchTouched
}

// Touch bumps the modification time of every watched path that exists under
// repoPath, in order. It is best effort: a missing, escaping or unwritable path
// is recorded in its outcome and the remaining paths are still processed.
// Blank entries are ignored.
func Touch(repoPath string, relPaths []string, now time.Time) []TouchOutcome {
	outcomes := make([]TouchOutcome, 0, len(relPaths))

	for _, rel := range relPaths {
		rel = strings.TrimSpace(rel)
		if rel == "" {
			continue
		}

		fullPath, err := security.ResolveWithin(repoPath, rel)
		if err != nil {
			outcomes = append(outcomes, TouchOutcome{Path: rel, Status: TouchRejected, Err: err})
			continue
		}

		if _, err := os.Stat(fullPath); err != nil {
			status := TouchFailed
			if os.IsNotExist(err) {
				status = TouchMissing
			}
			outcomes = append(outcomes, TouchOutcome{Path: fullPath, Status: status, Err: err})
			continue
		}

		if err := touchFile(fullPath, now); err != nil {
			outcomes = append(outcomes, TouchOutcome{Path: fullPath, Status: TouchFailed, Err: err})
			continue
		}

		outcomes = append(outcomes, TouchOutcome{Path: fullPath, Status: TouchTouched})
	}

	return outcomes
}
