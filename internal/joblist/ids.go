package joblist

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

// IDStrategy picks the job_id for a new posting from the current listing.
type IDStrategy interface {
	NextID(s State) (uint64, error)
}

// SequentialIDs derives ids from the listing size plus Offset. Ids already present
// in the local listing are skipped; other clients posting at the same time can still
// collide, in which case the module rejects the transaction.
type SequentialIDs struct {
	Offset uint64
}

// NextID implements IDStrategy.
func (q SequentialIDs) NextID(s State) (uint64, error) {
	id := uint64(s.NextJobIDSeed) + q.Offset
	for containsID(s.AllJobs, id) {
		id++
	}
	return id, nil
}

// RandomIDs draws 63-bit ids from crypto/rand, at or above Offset.
type RandomIDs struct {
	Offset uint64
}

// NextID implements IDStrategy.
func (r RandomIDs) NextID(s State) (uint64, error) {
	var buf [8]byte
	for attempt := 0; attempt < 8; attempt++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("read random id: %w", err)
		}
		id := binary.BigEndian.Uint64(buf[:]) >> 1
		if id < r.Offset || containsID(s.AllJobs, id) {
			continue
		}
		return id, nil
	}
	return 0, fmt.Errorf("could not draw an unused job id")
}

// StrategyByName maps the JOB_ID_STRATEGY setting to an IDStrategy.
func StrategyByName(name string, offset uint64) (IDStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sequential":
		return SequentialIDs{Offset: offset}, nil
	case "random":
		return RandomIDs{Offset: offset}, nil
	default:
		return nil, fmt.Errorf("unknown job id strategy %q", name)
	}
}
