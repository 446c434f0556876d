package strategy

import (
	"fmt"

	"cexdexarb/pkg/types"
)

// ClientID builds a deterministic client order ID: any in-flight order at
// crash time is queryable by this ID alone, with no journal needed to
// reconstruct which cycle/leg/attempt produced it.
func ClientID(cycleSeq int64, leg types.Leg, attempt int) string {
	return fmt.Sprintf("cycle-%d-leg%d-%d", cycleSeq, int(leg), attempt)
}
