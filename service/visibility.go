package service

import (
	"material-pipeline/constant"
	"material-pipeline/entities"
)

// VisibleTo reports whether role may read the record. Students only see
// published material; every other role sees every state.
func VisibleTo(record *entities.MaterialRecord, role constant.Role) bool {
	if role != constant.RoleStudent {
		return true
	}
	return record.State == constant.MaterialStatePublished
}

// FilterForRole keeps the records role may read, in their original order.
// Uploaded course files are never filtered this way.
func FilterForRole(records []*entities.MaterialRecord, role constant.Role) []*entities.MaterialRecord {
	visible := make([]*entities.MaterialRecord, 0, len(records))
	for _, r := range records {
		if VisibleTo(r, role) {
			visible = append(visible, r)
		}
	}
	return visible
}
