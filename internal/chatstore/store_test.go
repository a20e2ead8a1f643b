package chatstore

import "testing"

func TestProjectIDFromChat(t *testing.T) {
	cases := []struct {
		chatID string
		want   *int64
	}{
		{"team_7", int64p(7)},
		{"team_123", int64p(123)},
		{"team_", nil},
		{"team_abc", nil},
		{"dm_1_2", nil},
		{"", nil},
		{"7", nil},
	}
	for _, tc := range cases {
		got := ProjectIDFromChat(tc.chatID)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ProjectIDFromChat(%q) = %d, want nil", tc.chatID, *got)
		case tc.want != nil && got == nil:
			t.Errorf("ProjectIDFromChat(%q) = nil, want %d", tc.chatID, *tc.want)
		case tc.want != nil && *got != *tc.want:
			t.Errorf("ProjectIDFromChat(%q) = %d, want %d", tc.chatID, *got, *tc.want)
		}
	}
}

func int64p(n int64) *int64 { return &n }
