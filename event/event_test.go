package event_test

import (
	"errors"
	"testing"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/event"
)

const alarmEvent = `{
  "version": "0",
  "id": "c4c1c1c9-6542-e61b-6ef0-8c4d36933a92",
  "detail-type": "CloudWatch Alarm State Change",
  "source": "aws.cloudwatch",
  "account": "123456789012",
  "time": "2026-10-19T12:00:00Z",
  "region": "us-east-1",
  "resources": ["arn:aws:cloudwatch:us-east-1:123456789012:alarm:EBS_Automation_i-0abc_D"],
  "detail": {
    "alarmName": "EBS_Automation_i-0abc_D",
    "state": {"value": "ALARM", "reason": "threshold crossed"},
    "configuration": {
      "metrics": [{
        "id": "m1",
        "metricStat": {"metric": {
          "namespace": "CWAgent",
          "name": "LogicalDisk % Free Space",
          "dimensions": {"instance": "D:", "InstanceId": "i-0abc", "objectname": "LogicalDisk"}
        }}
      }]
    }
  }
}`

func TestParseAndKind(t *testing.T) {
	tests := []struct {
		name string
		json string
		want event.Kind
	}{
		{"alarm", alarmEvent, event.KindAlarmStateChange},
		{"command", `{"source":"aws.ssm","detail-type":"EC2 Command Status-change Notification","detail":{}}`, event.KindCommandStatusChange},
		{"agent", `{"source":"aws.ssm","detail-type":"AWS API Call via CloudTrail","detail":{}}`, event.KindAgentActive},
		{"volume", `{"source":"aws.ec2","detail-type":"EBS Volume Notification","detail":{}}`, event.KindVolumeNotification},
		{"instance", `{"source":"aws.ec2","detail-type":"EC2 Instance State-change Notification","detail":{}}`, event.KindInstanceStateChange},
		{"unknown", `{"source":"aws.s3","detail-type":"Object Created","detail":{}}`, event.KindUnknown},
		{"wrong source", `{"source":"aws.ec2","detail-type":"EC2 Command Status-change Notification","detail":{}}`, event.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := event.Parse([]byte(tt.json))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := e.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{`not json`, `{}`, `{"source":"aws.ec2"}`} {
		if _, err := event.Parse([]byte(in)); !errors.Is(err, volshift.ErrInvalidEvent) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidEvent", in, err)
		}
	}
}

func TestAlarmTarget(t *testing.T) {
	e, err := event.Parse([]byte(alarmEvent))
	if err != nil {
		t.Fatal(err)
	}
	var d event.AlarmDetail
	if err := e.DecodeDetail(&d); err != nil {
		t.Fatal(err)
	}
	instance, drive, err := d.Target()
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if instance != "i-0abc" || drive != "D:" {
		t.Errorf("Target() = %q, %q", instance, drive)
	}

	var empty event.AlarmDetail
	if _, _, err := empty.Target(); !errors.Is(err, volshift.ErrInvalidEvent) {
		t.Errorf("empty Target() error = %v", err)
	}
}

func TestVolumeID(t *testing.T) {
	tests := []struct {
		resources []string
		want      string
		wantErr   bool
	}{
		{[]string{"arn:aws:ec2:us-east-1:123456789012:volume/vol-0f1e2d"}, "vol-0f1e2d", false},
		{[]string{"arn:aws:ec2:us-east-1:123456789012:instance/i-0abc"}, "", true},
		{nil, "", true},
	}
	for _, tt := range tests {
		e := &event.Envelope{Resources: tt.resources}
		got, err := e.VolumeID()
		if (err != nil) != tt.wantErr {
			t.Errorf("VolumeID(%v) error = %v", tt.resources, err)
			continue
		}
		if got != tt.want {
			t.Errorf("VolumeID(%v) = %q, want %q", tt.resources, got, tt.want)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{"alarm firing", alarmEvent, true},
		{"alarm ok", `{"source":"aws.cloudwatch","detail-type":"CloudWatch Alarm State Change","detail":{"alarmName":"EBS_Automation_x","state":{"value":"OK"}}}`, false},
		{"alarm other prefix", `{"source":"aws.cloudwatch","detail-type":"CloudWatch Alarm State Change","detail":{"alarmName":"CPU_high","state":{"value":"ALARM"}}}`, false},
		{"command success", `{"source":"aws.ssm","detail-type":"EC2 Command Status-change Notification","detail":{"command-id":"c1","status":"Success"}}`, true},
		{"command failed", `{"source":"aws.ssm","detail-type":"EC2 Command Status-change Notification","detail":{"command-id":"c1","status":"Failed"}}`, false},
		{"agent active", `{"source":"aws.ssm","detail-type":"AWS API Call via CloudTrail","detail":{"eventName":"UpdateInstanceInformation","requestParameters":{"instanceId":"i-1","agentStatus":"Active"}}}`, true},
		{"agent other call", `{"source":"aws.ssm","detail-type":"AWS API Call via CloudTrail","detail":{"eventName":"SendCommand"}}`, false},
		{"volume created", `{"source":"aws.ec2","detail-type":"EBS Volume Notification","detail":{"event":"createVolume","result":"available"}}`, true},
		{"volume deleted", `{"source":"aws.ec2","detail-type":"EBS Volume Notification","detail":{"event":"deleteVolume","result":"deleted"}}`, false},
		{"instance stopped", `{"source":"aws.ec2","detail-type":"EC2 Instance State-change Notification","detail":{"instance-id":"i-1","state":"stopped"}}`, true},
		{"instance running", `{"source":"aws.ec2","detail-type":"EC2 Instance State-change Notification","detail":{"instance-id":"i-1","state":"running"}}`, false},
		{"unknown", `{"source":"aws.s3","detail-type":"Object Created","detail":{}}`, false},
	}
	var f event.Filter
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := event.Parse([]byte(tt.json))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := f.Match(e); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterCustomPrefix(t *testing.T) {
	e, _ := event.Parse([]byte(`{"source":"aws.cloudwatch","detail-type":"CloudWatch Alarm State Change","detail":{"alarmName":"disk_low_1","state":{"value":"ALARM"}}}`))
	if !(event.Filter{AlarmPrefix: "disk_low"}).Match(e) {
		t.Error("custom prefix did not match")
	}
}
