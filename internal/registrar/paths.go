// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registrar

import (
	"fmt"
	"time"
)

// DefaultOutputPath returns the file name used when no destination is
// given, e.g. "registrar-data-20261019-compact.json".
func DefaultOutputPath(now time.Time, compact bool) string {
	mode := "full"
	if compact {
		mode = "compact"
	}
	return fmt.Sprintf("registrar-data-%s-%s.json", now.Format("20060102"), mode)
}
