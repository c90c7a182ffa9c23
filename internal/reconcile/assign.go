package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beekeep/internal/model"
)

// Assignment pairs an unresolved record with the hive a human chose for it.
type Assignment struct {
	Record model.ExtractionRecord
	HiveID string
}

// Assign commits a confirmed inspection for each assignment. Assignments
// naming a hive that is not in hives are dropped without error.
func (e *Engine) Assign(ctx context.Context, sessionID string, assignments []Assignment, hives []model.Hive) ([]model.InspectionRecord, error) {
	now := e.clock()

	var created []model.InspectionRecord
	for _, a := range assignments {
		hive := model.FindHive(hives, a.HiveID)
		if hive == nil {
			zap.L().Debug("reconcile: assignment to unknown hive dropped",
				zap.String("session_id", sessionID),
				zap.String("hive_id", a.HiveID),
			)
			continue
		}
		created = append(created, e.inspect(a.Record, hive, sessionID, now, true))
	}

	if err := e.commit(ctx, created); err != nil {
		return nil, eris.Wrapf(err, "reconcile: assign session %s", sessionID)
	}

	zap.L().Info("reconcile: manual assignments committed",
		zap.String("session_id", sessionID),
		zap.Int("assignments", len(assignments)),
		zap.Int("created", len(created)),
	)
	return created, nil
}
