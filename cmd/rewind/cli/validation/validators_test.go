package validation

import "testing"

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid uuid", "2026-08-29-9f8e7d6c-1a2b", false},
		{"valid plain", "session_01", false},
		{"empty", "", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"traversal", "../escape", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCheckpointID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "2026-08-29-9f8e-0004-1756450000000", false},
		{"valid with dots", "sess.a-0001-10", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"space", "a b", true},
		{"leading dot", ".hidden", true},
		{"lock suffix", "abc.lock", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCheckpointID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCheckpointID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
