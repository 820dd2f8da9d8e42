package store

import "qms/token-queue/internal/models"

var transitionMap = map[string][]string{
	"call_next": {models.StatusWaiting},
	"complete":  {models.StatusServing},
	"skip":      {models.StatusWaiting, models.StatusServing},
}

var transitionTarget = map[string]string{
	"call_next": models.StatusServing,
	"complete":  models.StatusCompleted,
	"skip":      models.StatusSkipped,
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// TargetStatus returns the status an action moves a token into.
func TargetStatus(action string) (string, bool) {
	status, ok := transitionTarget[action]
	return status, ok
}
