package redis

// Redis key naming conventions for taskq data.
// All keys are prefixed with "taskq:" to avoid collisions.

const keyPrefix = "taskq:"

// jobKey returns the Hash key for a job record: taskq:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// attemptsKey returns the Stream key for a job's attempt log:
// taskq:job:{id}:attempts
func attemptsKey(id string) string { return jobKey(id) + ":attempts" }

// queueKey returns the Sorted Set key for a pending queue: taskq:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }
