package util

import (
	"strings"
	"testing"
)

func TestGenerateDeterministicUID(t *testing.T) {
	seeds := []string{
		"test",
		"this_is_a_very_long_seed_string_for_testing_uid_generation",
		"study_123_series_456",
		"test/path/to/output",
	}

	seen := make(map[string]string)
	for _, seed := range seeds {
		t.Run(seed, func(t *testing.T) {
			uid := GenerateDeterministicUID(seed)

			if !strings.HasPrefix(uid, uidRoot) {
				t.Errorf("UID should start with %s, got: %s", uidRoot, uid)
			}
			if len(uid) > 64 {
				t.Errorf("UID too long: %d chars: %s", len(uid), uid)
			}
			for _, c := range uid {
				if c != '.' && (c < '0' || c > '9') {
					t.Errorf("UID contains invalid character '%c': %s", c, uid)
				}
			}
			if again := GenerateDeterministicUID(seed); again != uid {
				t.Errorf("same seed produced different UIDs: %s vs %s", uid, again)
			}
			if prev, ok := seen[uid]; ok {
				t.Errorf("seeds %q and %q collide on %s", prev, seed, uid)
			}
			seen[uid] = seed
		})
	}
}
