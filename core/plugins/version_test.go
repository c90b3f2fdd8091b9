package plugins

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.2.3", "1.2.3", false},
		{"v0.3.0", "0.3.0", false},
		{"2", "2.0.0", false},
		{"1.4", "1.4.0", false},
		{"", "", true},
		{"1.2.3.4", "", true},
		{"1.x.0", "", true},
		{"-1.0.0", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && v.String() != tt.want {
				t.Errorf("ParseVersion(%q) = %s, want %s", tt.input, v, tt.want)
			}
		})
	}
}

func TestVersionIsCompatibleWith(t *testing.T) {
	tests := []struct {
		host, required string
		want           bool
	}{
		{"0.3.0", "0.3.0", true},
		{"0.3.5", "0.2.9", true},
		{"0.3.0", "0.4.0", false},
		{"1.0.0", "0.3.0", false},
	}

	for _, tt := range tests {
		host, _ := ParseVersion(tt.host)
		req, _ := ParseVersion(tt.required)
		if got := host.IsCompatibleWith(req); got != tt.want {
			t.Errorf("%s.IsCompatibleWith(%s) = %v, want %v", tt.host, tt.required, got, tt.want)
		}
	}
}

func TestCheckFormatCompatibility(t *testing.T) {
	if err := CheckFormatCompatibility(&Format{Name: "a"}, HostVersion); err != nil {
		t.Errorf("no requirement: %v", err)
	}
	if err := CheckFormatCompatibility(&Format{Name: "a", MinHostVersion: "0.1.0"}, "0.3.0"); err != nil {
		t.Errorf("satisfied requirement: %v", err)
	}
	err := CheckFormatCompatibility(&Format{Name: "a", MinHostVersion: "0.9.0"}, "0.3.0")
	if !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("unsatisfied requirement = %v, want ErrIncompatibleVersion", err)
	}
	if err := CheckFormatCompatibility(&Format{Name: "a", MinHostVersion: "bad"}, "0.3.0"); err == nil {
		t.Error("invalid requirement should fail")
	}
}
