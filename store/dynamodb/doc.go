// Package dynamodb implements store.FullStore on Amazon DynamoDB, the
// table the original deployment used for task tokens. Correlation items
// are keyed by ResourceId (hash) and Stage (range). Puts are conditional
// on attribute_not_exists and takes use DeleteItem with ALL_OLD, so both
// are single atomic requests.
package dynamodb
