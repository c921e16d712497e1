package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourist-overwatch/pkg/ontology"
)

func TestRegistryLookups(t *testing.T) {
	reg, err := New(SeedTourists())
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		tourist, err := reg.LookupByID("2")
		require.NoError(t, err)
		assert.Equal(t, "James Miller", tourist.Name)
	})

	t.Run("by trip reference", func(t *testing.T) {
		tourist, err := reg.LookupByTripReference("TRIP-00125")
		require.NoError(t, err)
		assert.Equal(t, "3", tourist.ID)
	})

	t.Run("unknown trip reference", func(t *testing.T) {
		_, err := reg.LookupByTripReference("TRIP-00127")
		assert.ErrorIs(t, err, ErrTouristNotFound)
	})

	t.Run("resolve accepts both keys", func(t *testing.T) {
		byID, err := reg.Resolve("4")
		require.NoError(t, err)
		byTrip, err := reg.Resolve("TRIP-00126")
		require.NoError(t, err)
		assert.Equal(t, byID, byTrip)
	})
}

func TestRegistryAllIsACopy(t *testing.T) {
	reg, err := New(SeedTourists())
	require.NoError(t, err)

	all := reg.All()
	all[0].Name = "changed"

	again := reg.All()
	assert.Equal(t, "Priya Sharma", again[0].Name)
	assert.Len(t, again, reg.Len())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	tourists := SeedTourists()
	tourists[1].TripReference = tourists[0].TripReference

	_, err := New(tourists)
	assert.Error(t, err)

	tourists = SeedTourists()
	tourists[2].Status = "lost"
	_, err = New(tourists)
	assert.Error(t, err)
}

func TestRegistrySearch(t *testing.T) {
	reg, err := New(SeedTourists())
	require.NoError(t, err)

	assert.Len(t, reg.Search("", ""), 4)
	assert.Len(t, reg.Search("assam", ""), 2)
	assert.Len(t, reg.Search("trip-0012", ontology.StatusSafe), 2)

	hits := reg.Search("uk", "")
	require.Len(t, hits, 1)
	assert.Equal(t, "Sarah Johnson", hits[0].Name)

	assert.Empty(t, reg.Search("nobody", ""))
}

func TestRegistryStatusCounts(t *testing.T) {
	reg, err := New(SeedTourists())
	require.NoError(t, err)

	counts := reg.StatusCounts()
	assert.Equal(t, 2, counts[ontology.StatusSafe])
	assert.Equal(t, 1, counts[ontology.StatusSensitiveZone])
	assert.Equal(t, 1, counts[ontology.StatusEmergency])
}
