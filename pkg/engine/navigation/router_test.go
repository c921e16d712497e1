package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/registry"
)

func newRouter(t *testing.T) *Router {
	t.Helper()
	reg, err := registry.New(registry.SeedTourists())
	require.NoError(t, err)
	return NewRouter(reg)
}

func assertInvariant(t *testing.T, s ontology.NavigationState) {
	t.Helper()
	if s.ActiveView == ontology.ViewEntityDetail {
		assert.NotEmpty(t, s.SelectedTouristID, "detail view without a selection")
	}
}

func TestSelectEntity(t *testing.T) {
	r := newRouter(t)

	tourist, err := r.SelectEntity("TRIP-00124")
	require.NoError(t, err)
	assert.Equal(t, "2", tourist.ID)

	state := r.State()
	assert.Equal(t, ontology.ViewEntityDetail, state.ActiveView)
	assert.Equal(t, "2", state.SelectedTouristID)
	assert.Equal(t, ontology.ViewDashboard, state.PreviousView)
}

func TestSelectUnknownEntityChangesNothing(t *testing.T) {
	r := newRouter(t)
	_, err := r.NavigateTo(ontology.ViewAlerts)
	require.NoError(t, err)
	before := r.State()

	_, err = r.SelectEntity("unknown-ref")
	assert.ErrorIs(t, err, registry.ErrTouristNotFound)
	assert.Equal(t, before, r.State())
}

func TestNavigateToDashboardClearsSelection(t *testing.T) {
	r := newRouter(t)
	_, err := r.SelectEntity("1")
	require.NoError(t, err)

	state, err := r.NavigateTo(ontology.ViewDashboard)
	require.NoError(t, err)
	assert.Equal(t, ontology.ViewDashboard, state.ActiveView)
	assert.Empty(t, state.SelectedTouristID)
}

func TestStickySelection(t *testing.T) {
	r := newRouter(t)
	_, err := r.SelectEntity("3")
	require.NoError(t, err)

	state, err := r.NavigateTo(ontology.ViewRiskZones)
	require.NoError(t, err)
	assert.Equal(t, "3", state.SelectedTouristID, "tab switches keep the selection")

	state, err = r.NavigateTo(ontology.ViewEntityDetail)
	require.NoError(t, err)
	assert.Equal(t, ontology.ViewEntityDetail, state.ActiveView)
	assert.Equal(t, "3", state.SelectedTouristID)
}

func TestNavigateToDetailWithoutSelectionIsRejected(t *testing.T) {
	r := newRouter(t)
	_, err := r.NavigateTo(ontology.ViewTourists)
	require.NoError(t, err)
	before := r.State()

	_, err = r.NavigateTo(ontology.ViewEntityDetail)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, before, r.State())
}

func TestNavigateToUnknownView(t *testing.T) {
	r := newRouter(t)
	_, err := r.NavigateTo("map")
	assert.ErrorIs(t, err, ErrUnknownView)
	assert.Equal(t, ontology.ViewDashboard, r.State().ActiveView)
}

func TestBack(t *testing.T) {
	t.Run("detail returns to the view it was opened from", func(t *testing.T) {
		r := newRouter(t)
		_, err := r.NavigateTo(ontology.ViewAlerts)
		require.NoError(t, err)
		_, err = r.SelectEntity("2")
		require.NoError(t, err)
		_, err = r.SelectEntity("3")
		require.NoError(t, err)

		state := r.Back()
		assert.Equal(t, ontology.ViewAlerts, state.ActiveView)
		assert.Empty(t, state.SelectedTouristID)
	})

	t.Run("other views return to the dashboard", func(t *testing.T) {
		r := newRouter(t)
		_, err := r.SelectEntity("2")
		require.NoError(t, err)
		_, err = r.NavigateTo(ontology.ViewRescueOps)
		require.NoError(t, err)

		state := r.Back()
		assert.Equal(t, ontology.ViewDashboard, state.ActiveView)
		assert.Empty(t, state.SelectedTouristID)
	})
}

func TestInvariantHoldsAcrossSequences(t *testing.T) {
	r := newRouter(t)
	steps := []func(){
		func() { _, _ = r.SelectEntity("1") },
		func() { _, _ = r.NavigateTo(ontology.ViewTourists) },
		func() { _, _ = r.NavigateTo(ontology.ViewEntityDetail) },
		func() { r.Back() },
		func() { _, _ = r.NavigateTo(ontology.ViewEntityDetail) },
		func() { _, _ = r.SelectEntity("TRIP-00127") },
		func() { _, _ = r.SelectEntity("4") },
		func() { _, _ = r.NavigateTo(ontology.ViewDashboard) },
		func() { _, _ = r.NavigateTo(ontology.ViewEntityDetail) },
		func() { r.Back() },
	}
	for _, step := range steps {
		step()
		assertInvariant(t, r.State())
	}
}
