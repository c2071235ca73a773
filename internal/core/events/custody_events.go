package events

const (
	EventTypeScaleAssigned = "scale.assigned"
	EventTypeScaleReturned = "scale.returned"
	EventTypeScaleChanged  = "scale.changed"
)

// InventoryEventTypes lists every event that changes dashboard counts.
var InventoryEventTypes = []string{
	EventTypeScaleAssigned,
	EventTypeScaleReturned,
	EventTypeScaleChanged,
}

type ScaleAssignedEvent struct {
	BaseEvent
	AssignmentID int64 `json:"assignmentId"`
	ScaleID      int64 `json:"scaleId"`
	UnitID       int64 `json:"unitId"`
	AssignedByID int64 `json:"assignedById"`
}

func NewScaleAssignedEvent(assignmentID, scaleID, unitID, assignedByID int64) *ScaleAssignedEvent {
	return &ScaleAssignedEvent{
		BaseEvent:    newBaseEvent(EventTypeScaleAssigned),
		AssignmentID: assignmentID,
		ScaleID:      scaleID,
		UnitID:       unitID,
		AssignedByID: assignedByID,
	}
}

type ScaleReturnedEvent struct {
	BaseEvent
	AssignmentID int64  `json:"assignmentId"`
	ScaleID      int64  `json:"scaleId"`
	ReturnedByID int64  `json:"returnedById"`
	Condition    string `json:"condition"`
}

func NewScaleReturnedEvent(assignmentID, scaleID, returnedByID int64, condition string) *ScaleReturnedEvent {
	return &ScaleReturnedEvent{
		BaseEvent:    newBaseEvent(EventTypeScaleReturned),
		AssignmentID: assignmentID,
		ScaleID:      scaleID,
		ReturnedByID: returnedByID,
		Condition:    condition,
	}
}

// ScaleChangedEvent covers creation, edits and calibration of a scale.
type ScaleChangedEvent struct {
	BaseEvent
	ScaleID int64  `json:"scaleId"`
	Action  string `json:"action"`
}

func NewScaleChangedEvent(scaleID int64, action string) *ScaleChangedEvent {
	return &ScaleChangedEvent{
		BaseEvent: newBaseEvent(EventTypeScaleChanged),
		ScaleID:   scaleID,
		Action:    action,
	}
}
