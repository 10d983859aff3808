package instance

import "github.com/angelmondragon/fieldops-backend/pkg/env"

// GetID returns the process instance identifier used in logs. Platform dyno
// names win over WORKER_ID.
func GetID() string {
	return env.First("local", "DYNO", "WORKER_ID")
}
