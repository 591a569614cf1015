package util

import "testing"

func TestParseSize_ValidSizes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100KB", 102400},
		{"1MB", 1048576},
		{"10MB", 10485760},
		{"1.5GB", 1610612736},
		{"0.5KB", 512},
		{"4096B", 4096},
		{"0KB", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if err != nil {
				t.Fatalf("ParseSize(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSize_InvalidFormats(t *testing.T) {
	tests := []string{
		"100",
		"1.5TB",
		"abc",
		"100 MB",
		"-100MB",
		"10mb",
		"",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSize(input)
			if err == nil {
				t.Errorf("ParseSize(%q) expected error, got nil", input)
			}
		})
	}
}

func TestParseBlockSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"10MB", 10 * 1024 * 1024, false},
		{"64KB", 65536, false},
		{"0KB", 0, true},
		{"0.0001KB", 0, true},
		{"4GB", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBlockSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBlockSize(%q) error = %v, wantErr %t", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBlockSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
