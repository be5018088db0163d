package access

import (
	"strings"
)

// Visibility returns a SQL predicate, with '?' placeholders, that holds for
// rows whose objectIDColumn names an object visible to id. All-access users
// get an empty predicate. Users without groups see nothing.
func Visibility(id *Identity, objectIDColumn string) (string, []any) {
	if id.AllAccess() {
		return "", nil
	}

	groupIDs := id.GroupIDs()
	if len(groupIDs) == 0 {
		return "1=0", nil
	}

	args := make([]any, 0, len(groupIDs))
	for _, gid := range groupIDs {
		args = append(args, gid)
	}

	// An uncorrelated IN subquery; a correlated EXISTS yields one row per
	// matching grant on some SQLite builds.
	clause := objectIDColumn + " IN (SELECT p.object_id FROM permissions p WHERE p.group_id IN (" +
		placeholders(len(groupIDs)) + "))"
	return clause, args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
