package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/beekeep/internal/model"
)

// Column lists shared by the SQL stores.
const (
	hiveColumns       = `id, name, location, notes, color, is_active, created_at, latest_inspection_id, last_inspected_at`
	inspectionColumns = `id, hive_id, hive_name, date, ts, observations, source, session_id, confirmed, edited_by, edited_at, notes`
	sessionColumns    = `id, source, recording_url, transcript, created_at, inspection_ids, unresolved`
)

func marshalSessionLists(s *model.Session) (string, string, error) {
	ids, err := json.Marshal(nonNil(s.InspectionIDs))
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal inspection ids")
	}
	unresolved, err := json.Marshal(nonNil(s.Unresolved))
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal unresolved")
	}
	return string(ids), string(unresolved), nil
}

func unmarshalSessionLists(s *model.Session, ids, unresolved []byte) error {
	if err := json.Unmarshal(ids, &s.InspectionIDs); err != nil {
		return eris.Wrap(err, "store: unmarshal inspection ids")
	}
	if err := json.Unmarshal(unresolved, &s.Unresolved); err != nil {
		return eris.Wrap(err, "store: unmarshal unresolved")
	}
	if len(s.InspectionIDs) == 0 {
		s.InspectionIDs = nil
	}
	if len(s.Unresolved) == 0 {
		s.Unresolved = nil
	}
	return nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
