package taskq

import "github.com/xraph/taskq/id"

// ID is the identifier type for jobs.
type ID = id.ID
