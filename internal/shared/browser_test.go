package shared

import (
	"strings"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	const url = "https://accounts.spotify.com/authorize?state=x"

	cases := []struct {
		platform string
		wantArg  string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "cmd"},
	}

	for _, tc := range cases {
		t.Run(tc.platform, func(t *testing.T) {
			cmd, err := browserCommand(tc.platform, url)
			if err != nil {
				t.Fatalf("browserCommand failed: %v", err)
			}
			if !strings.Contains(cmd.Args[0], tc.wantArg) {
				t.Errorf("expected launcher %s, got %v", tc.wantArg, cmd.Args)
			}
			if cmd.Args[len(cmd.Args)-1] != url {
				t.Errorf("url not passed through: %v", cmd.Args)
			}
		})
	}

	t.Run("unsupported platform", func(t *testing.T) {
		if _, err := browserCommand("plan9", url); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})
}
