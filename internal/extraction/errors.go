package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMatch is returned when no contig header matches the requested id.
var ErrNoMatch = errors.New("no contig matches id")

// AmbiguousMatch reports a substring lookup that matched several headers.
// The first match is extracted; the rest are listed for the ledger.
type AmbiguousMatch struct {
	Sample   string
	ContigID string
	Matches  []string
}

func (e *AmbiguousMatch) Error() string {
	return fmt.Sprintf("%s: %s matched %d contigs (%s); extracted %s",
		e.Sample, e.ContigID, len(e.Matches), strings.Join(e.Matches, ", "), e.Matches[0])
}
