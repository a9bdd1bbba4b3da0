package regulation

import (
	"sort"

	"github.com/careflow/referral-scheduling/internal/geo"
)

// SelectBestSlot ranks candidate slots and returns the winner, or nil when
// there are no candidates. The ranking is a strict total order: earliest
// date first, then smallest distance from the reference location to the
// slot's facility. The sort is stable, so ties beyond both keys resolve to
// the candidate that appeared first in the input.
//
// Selection does not mutate anything; reserving the slot is the service's
// commit step so ranking stays testable without side effects.
func SelectBestSlot(refLat, refLon float64, candidates []CandidateSlot) *CandidateSlot {
	if len(candidates) == 0 {
		return nil
	}

	type ranked struct {
		candidate CandidateSlot
		distance  float64
	}

	rankedCandidates := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		rankedCandidates = append(rankedCandidates, ranked{
			candidate: c,
			distance:  geo.Distance(refLat, refLon, c.FacilityLat, c.FacilityLon),
		})
	}

	sort.SliceStable(rankedCandidates, func(i, j int) bool {
		di, dj := rankedCandidates[i].candidate.Date, rankedCandidates[j].candidate.Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return rankedCandidates[i].distance < rankedCandidates[j].distance
	})

	best := rankedCandidates[0].candidate
	return &best
}
