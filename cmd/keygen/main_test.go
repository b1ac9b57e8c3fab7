package main

import "testing"

func TestParseScopes(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"predict", 1, false},
		{"predict, admin", 2, false},
		{"predict,,", 1, false},
		{"", 0, true},
		{"root", 0, true},
	}

	for _, tt := range tests {
		got, err := parseScopes(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseScopes(%q) should have errored", tt.input)
			}
			continue
		}
		if err != nil || len(got) != tt.want {
			t.Errorf("parseScopes(%q) = %v, %v", tt.input, got, err)
		}
	}
}
