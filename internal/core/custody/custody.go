// Package custody holds the closed enumerations shared by every custody
// entity. Values outside these sets are rejected at the boundary.
package custody

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleAuditor    Role = "auditor"
	RoleViewer     Role = "viewer"
)

var Roles = []Role{RoleAdmin, RoleTechnician, RoleAuditor, RoleViewer}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

type ScaleStatus string

const (
	ScaleAvailable   ScaleStatus = "available"
	ScaleAssigned    ScaleStatus = "assigned"
	ScaleMaintenance ScaleStatus = "maintenance"
	ScaleRetired     ScaleStatus = "retired"
)

var ScaleStatuses = []ScaleStatus{ScaleAvailable, ScaleAssigned, ScaleMaintenance, ScaleRetired}

func (s ScaleStatus) Valid() bool {
	for _, v := range ScaleStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentReturned AssignmentStatus = "returned"
	// AssignmentOverdue is never stored; it is derived when an active
	// assignment is past its expected return date.
	AssignmentOverdue AssignmentStatus = "overdue"
)

func (s AssignmentStatus) Valid() bool {
	return s == AssignmentActive || s == AssignmentReturned || s == AssignmentOverdue
}

type Condition string

const (
	ConditionExcellent        Condition = "excellent"
	ConditionGood             Condition = "good"
	ConditionFair             Condition = "fair"
	ConditionNeedsMaintenance Condition = "needs_maintenance"
	ConditionDamaged          Condition = "damaged"
)

var Conditions = []Condition{ConditionExcellent, ConditionGood, ConditionFair, ConditionNeedsMaintenance, ConditionDamaged}

func (c Condition) Valid() bool {
	for _, v := range Conditions {
		if c == v {
			return true
		}
	}
	return false
}

type ActionType string

const (
	ActionAssigned   ActionType = "assigned"
	ActionReturned   ActionType = "returned"
	ActionCalibrated ActionType = "calibrated"
	ActionCreated    ActionType = "created"
	ActionUpdated    ActionType = "updated"
)

var ActionTypes = []ActionType{ActionAssigned, ActionReturned, ActionCalibrated, ActionCreated, ActionUpdated}

func (a ActionType) Valid() bool {
	for _, v := range ActionTypes {
		if a == v {
			return true
		}
	}
	return false
}

// ReturnOverdue reports whether an expected return date has passed at now.
// The date names a whole UTC day, so a return due today is on time until
// the day is over.
func ReturnOverdue(due *time.Time, now time.Time) bool {
	if due == nil {
		return false
	}
	endOfDay := due.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return !now.Before(endOfDay)
}
