package ontology

type View string

const (
	ViewDashboard    View = "dashboard"
	ViewTourists     View = "tourists"
	ViewAlerts       View = "alerts"
	ViewRiskZones    View = "risk-zones"
	ViewRescueOps    View = "rescue-ops"
	ViewAIInsights   View = "ai-insights"
	ViewRecords      View = "records"
	ViewPostTrip     View = "post-trip"
	ViewSettings     View = "settings"
	ViewEntityDetail View = "tourist-profile"
)

func (v View) Valid() bool {
	switch v {
	case ViewDashboard, ViewTourists, ViewAlerts, ViewRiskZones, ViewRescueOps,
		ViewAIInsights, ViewRecords, ViewPostTrip, ViewSettings, ViewEntityDetail:
		return true
	}
	return false
}

// NavigationState holds SelectedTouristID whenever ActiveView is
// ViewEntityDetail.
type NavigationState struct {
	ActiveView        View   `json:"active_view"`
	SelectedTouristID string `json:"selected_tourist_id,omitempty"`
	PreviousView      View   `json:"previous_view"`
}

func (n NavigationState) HasSelection() bool {
	return n.SelectedTouristID != ""
}

type RibbonAction string

const (
	RibbonView        RibbonAction = "view"
	RibbonDispatch    RibbonAction = "dispatch"
	RibbonAcknowledge RibbonAction = "acknowledge"
	RibbonDismiss     RibbonAction = "dismiss"
)

func (a RibbonAction) Valid() bool {
	switch a {
	case RibbonView, RibbonDispatch, RibbonAcknowledge, RibbonDismiss:
		return true
	}
	return false
}

// RibbonState is transient. Instance increases every time a new alert is
// surfaced so callers can tell a replaced ribbon from the current one.
type RibbonState struct {
	Visible  bool        `json:"visible"`
	Alert    *AlertEvent `json:"alert,omitempty"`
	Instance uint64      `json:"instance"`
}
