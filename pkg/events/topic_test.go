package events

import "testing"

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name  string
		value string
		topic Topic
		valid bool
	}{
		{"route topic", "route:ROUTE1", Topic{Type: TopicTypeRoute, ID: "ROUTE1"}, true},
		{"stop topic", "stop:STOP1", Topic{Type: TopicTypeStop, ID: "STOP1"}, true},
		{"vehicle topic", "vehicle:BUS1", Topic{Type: TopicTypeVehicle, ID: "BUS1"}, true},
		{"id containing separator", "vehicle:GB:BUS:1", Topic{Type: TopicTypeVehicle, ID: "GB:BUS:1"}, true},
		{"unknown type", "operator:OP1", Topic{}, false},
		{"missing id", "route:", Topic{}, false},
		{"no separator", "route", Topic{}, false},
		{"empty", "", Topic{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, err := ParseTopic(tt.value)
			if tt.valid {
				if err != nil {
					t.Fatalf("ParseTopic(%q) error = %v", tt.value, err)
				}
				if topic != tt.topic {
					t.Errorf("ParseTopic(%q) = %v, expected %v", tt.value, topic, tt.topic)
				}
				if topic.String() != tt.value {
					t.Errorf("String() = %q, expected %q", topic.String(), tt.value)
				}
			} else if err == nil {
				t.Errorf("ParseTopic(%q) expected error", tt.value)
			}
		})
	}
}
