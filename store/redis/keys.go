package redis

import "github.com/xraph/volshift/workflow"

// All keys are prefixed with "volshift:" to avoid collisions.
const keyPrefix = "volshift:"

// recordKey returns the key holding a parked token:
// volshift:corr:{resourceID}:{stage}
func recordKey(resourceID string, stage workflow.Stage) string {
	return keyPrefix + "corr:" + resourceID + ":" + string(stage)
}

// dlqKey returns the hash key for a DLQ entry: volshift:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIndexKey is the Sorted Set of DLQ entry IDs scored by failed_at millis.
const dlqIndexKey = keyPrefix + "dlq_idx"
