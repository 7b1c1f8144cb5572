package instrumentation

import "testing"

func TestExtractOriginHost(t *testing.T) {
	tests := []struct {
		origin   string
		expected string
	}{
		{"https://app.example.com", "app.example.com"},
		{"http://localhost:3000", "localhost"},
		{"https://drive.company.org:8443", "drive.company.org"},
		{"invalid", "unknown"},
		{"", "unknown"},
		{"://bad", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			result := ExtractOriginHost(tt.origin)
			if result != tt.expected {
				t.Errorf("ExtractOriginHost(%q) = %q, want %q", tt.origin, result, tt.expected)
			}
		})
	}
}

func TestOperationConstants(t *testing.T) {
	operations := map[string]string{
		OperationGet:          "get",
		OperationList:         "list",
		OperationContent:      "content",
		OperationContentRange: "content_range",
		OperationUpload:       "upload",
	}

	for constant, expected := range operations {
		if constant != expected {
			t.Errorf("Operation constant = %q, want %q", constant, expected)
		}
	}
}
