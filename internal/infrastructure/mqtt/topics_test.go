package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	if got := topics.SystemStatus(); got != "lockerhub/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
	if got := topics.DeviceCommand("gym/bank-07"); got != "gym/bank-07/cmd" {
		t.Errorf("DeviceCommand() = %q", got)
	}
	if !topics.IsSystemTopic("lockerhub/system/status") {
		t.Error("IsSystemTopic() = false for system status topic")
	}
	if topics.IsSystemTopic("gym/bank-07/sync") {
		t.Error("IsSystemTopic() = true for device topic")
	}
}

func TestSplitDeviceTopic(t *testing.T) {
	tests := []struct {
		topic      string
		wantBase   string
		wantAction string
	}{
		{"gym/bank-07/sync", "gym/bank-07", "sync"},
		{"bank-07/send", "bank-07", "send"},
		{"gym/floor2/bank-03/cmd", "gym/floor2/bank-03", "cmd"},
		{"bank-07", "bank-07", ""},
	}

	for _, tt := range tests {
		base, action := SplitDeviceTopic(tt.topic)
		if base != tt.wantBase || action != tt.wantAction {
			t.Errorf("SplitDeviceTopic(%q) = (%q, %q), want (%q, %q)",
				tt.topic, base, action, tt.wantBase, tt.wantAction)
		}
	}
}

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"gym/bank-07/cmd", false},
		{"", true},
		{"gym/+/cmd", true},
		{"gym/#", true},
	}

	for _, tt := range tests {
		err := validatePublishTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePublishTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
	}
}
