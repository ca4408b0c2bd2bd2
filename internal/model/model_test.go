package model

import (
	"regexp"
	"testing"
	"time"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
		ok    bool
	}{
		{"dps", ModeDPS, true},
		{"sim", ModeDPS, true},
		{"scaling", ModeScaling, true},
		{"statweights", ModeScaling, true},
		{"stats", ModeScaling, true},
		{"heal", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseMode(%q) = %q, %v, want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDelivery(t *testing.T) {
	tests := []struct {
		input string
		want  Delivery
		ok    bool
	}{
		{"dm", DeliveryDirectMessage, true},
		{"direct", DeliveryDirectMessage, true},
		{"channel", DeliveryChannel, true},
		{"email", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDelivery(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDelivery(%q) = %q, %v, want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewRecordCopiesJob(t *testing.T) {
	j := &Job{
		ID:          NewID(),
		Submitter:   Submitter{ID: "42", Name: "sam"},
		Mode:        ModeScaling,
		Delivery:    DeliveryChannel,
		CreatedAt:   time.Now().UTC(),
		DisplayName: "Thrall",
		Filename:    "Thrall",
	}

	rec := NewRecord(j, StatusCompleted)
	if rec.ID != j.ID || rec.SubmitterID != "42" || rec.SubmitterName != "sam" {
		t.Errorf("record identity = %+v", rec)
	}
	if rec.DisplayName != "Thrall" || rec.Mode != ModeScaling || rec.Delivery != DeliveryChannel {
		t.Errorf("record fields = %+v", rec)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", rec.Status, StatusCompleted)
	}
	if j.ReportName() != "Thrall.html" {
		t.Errorf("ReportName() = %q, want Thrall.html", j.ReportName())
	}
}
