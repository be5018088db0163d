package access

import (
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

// CanSet reports whether id may attach values of a key given the key's
// per-group permissions.
func CanSet(id *Identity, perms []models.MetakeyPermission) bool {
	if id.HasRights(models.CapAddingAllAttributes) {
		return true
	}
	for _, p := range perms {
		if p.CanSet && id.inGroup(p.GroupID) {
			return true
		}
	}
	return false
}

// CanRead reports whether id may read values of def. Some group of id must
// have can_read for the key; hidden keys also need reading_all_attributes.
func CanRead(id *Identity, def *models.MetakeyDefinition, perms []models.MetakeyPermission) bool {
	if def.Hidden && !id.HasRights(models.CapReadingAllAttributes) {
		return false
	}
	for _, p := range perms {
		if p.CanRead && id.inGroup(p.GroupID) {
			return true
		}
	}
	return false
}

// ReadableKeys filters defs down to the keys id may read.
// permsByKey maps a case-folded key to its permission rows.
func ReadableKeys(id *Identity, defs []models.MetakeyDefinition, permsByKey map[string][]models.MetakeyPermission) map[string]bool {
	out := make(map[string]bool, len(defs))
	for i := range defs {
		if CanRead(id, &defs[i], permsByKey[defs[i].Key]) {
			out[defs[i].Key] = true
		}
	}
	return out
}

func (i *Identity) inGroup(groupID int64) bool {
	for _, g := range i.Groups {
		if g.ID == groupID {
			return true
		}
	}
	return false
}
