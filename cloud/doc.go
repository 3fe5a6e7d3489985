// Package cloud holds the narrow capability interfaces the stages call:
// Compute and Storage over EC2, Commands over SSM, and Tasks over Step
// Functions. Each interface is satisfied by the SDK client directly, so
// production code passes *ec2.Client and friends while tests pass the
// function-adapter fakes in cloudtest.
package cloud
