package models

import "time"

// User is an authenticated principal. Users are provisioned by artivaultctl.
type User struct {
	ID        int64     `json:"-"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
}

// Capability is a named right granted to a group.
type Capability string

const (
	CapAddingParents        Capability = "adding_parents"
	CapSharingObjects       Capability = "sharing_objects"
	CapAddingAllAttributes  Capability = "adding_all_attributes"
	CapManagingAttributes   Capability = "managing_attributes"
	CapReadingAllAttributes Capability = "reading_all_attributes"
)

// AllCapabilities lists every known capability.
var AllCapabilities = []Capability{
	CapAddingParents,
	CapSharingObjects,
	CapAddingAllAttributes,
	CapManagingAttributes,
	CapReadingAllAttributes,
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// Group is a set of users sharing visibility and capabilities.
// A private group is the personal group of the user with the same login.
type Group struct {
	ID           int64        `json:"-"`
	Name         string       `json:"name"`
	Public       bool         `json:"public"`
	Private      bool         `json:"private"`
	Pending      bool         `json:"pending"`
	AllAccess    bool         `json:"all_access"`
	Capabilities []Capability `json:"capabilities"`
}

// GrantReason records why a group gained access to an object.
type GrantReason string

const (
	ReasonAdded  GrantReason = "added"
	ReasonShared GrantReason = "shared"
)

// AccessGrant gives a group visibility of an object.
// GroupName is filled in by listings only.
type AccessGrant struct {
	ObjectID        int64       `json:"-"`
	GroupID         int64       `json:"-"`
	GroupName       string      `json:"group_name"`
	Reason          GrantReason `json:"reason"`
	RelatedObjectID int64       `json:"-"`
	RelatedUserID   int64       `json:"-"`
	AccessTime      time.Time   `json:"access_time"`
}
