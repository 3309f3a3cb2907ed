package mailbox

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewCorrelationID_IsUniqueUUID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		id := NewCorrelationID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("id %q is not a UUID: %v", id, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNames(t *testing.T) {
	req, resp := DefaultPrefixes().Names("X")
	if req != "ubreq_X.txt" {
		t.Errorf("request name = %q", req)
	}
	if resp != "ubresp_X.json" {
		t.Errorf("response name = %q", resp)
	}
}

func TestClassify(t *testing.T) {
	p := DefaultPrefixes()

	tests := []struct {
		name   string
		kind   Kind
		wantID string
	}{
		{"ubreq_abc.txt", KindRequest, "abc"},
		{"ubresp_abc.json", KindResponse, "abc"},
		{"ubreq_.txt", KindOther, ""},
		{"ubreq_abc.json", KindOther, ""},
		{"ubresp_abc.txt", KindOther, ""},
		{".tmp-123456", KindTemp, ""},
		{HeartbeatName, KindHeartbeat, ""},
		{"userbot.log", KindOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id := p.Classify(tt.name)
			if kind != tt.kind || id != tt.wantID {
				t.Errorf("Classify(%q) = (%s, %q), want (%s, %q)", tt.name, kind, id, tt.kind, tt.wantID)
			}
		})
	}
}

func TestPrefixes_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Prefixes
		wantErr bool
	}{
		{"default", DefaultPrefixes(), false},
		{"empty request", Prefixes{Response: "r_"}, true},
		{"identical", Prefixes{Request: "x_", Response: "x_"}, true},
		{"overlapping", Prefixes{Request: "ub", Response: "ubresp_"}, true},
		{"separator", Prefixes{Request: "a/b", Response: "r_"}, true},
		{"hidden", Prefixes{Request: ".q_", Response: "r_"}, true},
		{"custom", Prefixes{Request: "q_", Response: "a_"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
