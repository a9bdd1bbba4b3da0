package regulation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSelectBestSlotEmpty(t *testing.T) {
	assert.Nil(t, SelectBestSlot(0, 0, nil))
	assert.Nil(t, SelectBestSlot(0, 0, []CandidateSlot{}))
}

func TestSelectBestSlotEarliestDateWins(t *testing.T) {
	far := CandidateSlot{
		SlotID:      uuid.New(),
		Date:        day("2024-06-20"),
		FacilityLat: 0, FacilityLon: 0.001,
	}
	near := CandidateSlot{
		SlotID:      uuid.New(),
		Date:        day("2024-06-10"),
		FacilityLat: 0, FacilityLon: 50,
	}

	// Date dominates distance: the June 10 slot wins even though it is far.
	best := SelectBestSlot(0, 0, []CandidateSlot{far, near})
	require.NotNil(t, best)
	assert.Equal(t, near.SlotID, best.SlotID)
}

func TestSelectBestSlotDistanceBreaksDateTie(t *testing.T) {
	farther := CandidateSlot{
		SlotID:      uuid.New(),
		Date:        day("2024-06-10"),
		FacilityLat: 0, FacilityLon: 1,
	}
	nearer := CandidateSlot{
		SlotID:      uuid.New(),
		Date:        day("2024-06-10"),
		FacilityLat: 0, FacilityLon: 0.1,
	}

	best := SelectBestSlot(0, 0, []CandidateSlot{farther, nearer})
	require.NotNil(t, best)
	assert.Equal(t, nearer.SlotID, best.SlotID)
}

func TestSelectBestSlotStableOnFullTie(t *testing.T) {
	first := CandidateSlot{
		SlotID:      uuid.New(),
		Date:        day("2024-06-10"),
		FacilityLat: 10, FacilityLon: 10,
	}
	second := CandidateSlot{
		SlotID:      uuid.New(),
		Date:        day("2024-06-10"),
		FacilityLat: 10, FacilityLon: 10,
	}

	// Equal date and distance: the candidate that came first stays first.
	best := SelectBestSlot(0, 0, []CandidateSlot{first, second})
	require.NotNil(t, best)
	assert.Equal(t, first.SlotID, best.SlotID)
}

func TestSelectBestSlotDoesNotMutateInput(t *testing.T) {
	a := CandidateSlot{SlotID: uuid.New(), Date: day("2024-06-12")}
	b := CandidateSlot{SlotID: uuid.New(), Date: day("2024-06-10")}
	candidates := []CandidateSlot{a, b}

	_ = SelectBestSlot(0, 0, candidates)

	assert.Equal(t, a.SlotID, candidates[0].SlotID)
	assert.Equal(t, b.SlotID, candidates[1].SlotID)
}
