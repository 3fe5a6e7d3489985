// Package event decodes the EventBridge envelopes that report completion
// of asynchronous operations and classifies them by kind.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/volshift"
)

// Envelope is the EventBridge event structure.
type Envelope struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Account    string          `json:"account"`
	Time       time.Time       `json:"time"`
	Region     string          `json:"region"`
	Resources  []string        `json:"resources"`
	Detail     json.RawMessage `json:"detail"`
}

// Kind classifies an envelope by source and detail type.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindAlarmStateChange    Kind = "alarm-state-change"
	KindCommandStatusChange Kind = "command-status-change"
	KindAgentActive         Kind = "agent-active"
	KindVolumeNotification  Kind = "volume-notification"
	KindInstanceStateChange Kind = "instance-state-change"
)

// Sources and detail types the intake recognises.
const (
	SourceCloudWatch = "aws.cloudwatch"
	SourceSSM        = "aws.ssm"
	SourceEC2        = "aws.ec2"

	DetailAlarmStateChange    = "CloudWatch Alarm State Change"
	DetailCommandStatusChange = "EC2 Command Status-change Notification"
	DetailCloudTrailCall      = "AWS API Call via CloudTrail"
	DetailVolumeNotification  = "EBS Volume Notification"
	DetailInstanceStateChange = "EC2 Instance State-change Notification"
)

// Kind returns the envelope's kind.
func (e *Envelope) Kind() Kind {
	switch {
	case e.Source == SourceCloudWatch && e.DetailType == DetailAlarmStateChange:
		return KindAlarmStateChange
	case e.Source == SourceSSM && e.DetailType == DetailCommandStatusChange:
		return KindCommandStatusChange
	case e.Source == SourceSSM && e.DetailType == DetailCloudTrailCall:
		return KindAgentActive
	case e.Source == SourceEC2 && e.DetailType == DetailVolumeNotification:
		return KindVolumeNotification
	case e.Source == SourceEC2 && e.DetailType == DetailInstanceStateChange:
		return KindInstanceStateChange
	}
	return KindUnknown
}

// Parse decodes one envelope.
func Parse(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", volshift.ErrInvalidEvent, err)
	}
	if e.Source == "" || e.DetailType == "" {
		return nil, fmt.Errorf("%w: missing source or detail-type", volshift.ErrInvalidEvent)
	}
	return &e, nil
}

// DecodeDetail unmarshals the detail object into v.
func (e *Envelope) DecodeDetail(v any) error {
	if len(e.Detail) == 0 {
		return fmt.Errorf("%w: %s event has no detail", volshift.ErrInvalidEvent, e.DetailType)
	}
	if err := json.Unmarshal(e.Detail, v); err != nil {
		return fmt.Errorf("%w: %s detail: %w", volshift.ErrInvalidEvent, e.DetailType, err)
	}
	return nil
}
