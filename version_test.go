package lancar

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	if !strings.HasPrefix(v, "lancar "+Version+" (") {
		t.Errorf("Unexpected version string %q", v)
	}
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("Expected %s to be set", key)
		}
	}
	if UserAgent() != "lancar/"+Version {
		t.Errorf("Unexpected user agent %q", UserAgent())
	}
}
