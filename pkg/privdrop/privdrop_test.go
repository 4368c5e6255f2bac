package privdrop

import (
	"os/user"
	"strconv"
	"testing"
)

func TestEnabled(t *testing.T) {
	cases := []struct {
		cfg  Config
		want bool
	}{
		{Config{}, false},
		{Config{User: "nobody"}, true},
		{Config{Group: "nogroup"}, true},
		{Config{Chroot: "/var/empty"}, true},
	}
	for _, tc := range cases {
		if got := tc.cfg.Enabled(); got != tc.want {
			t.Errorf("Enabled(%+v) = %v, want %v", tc.cfg, got, tc.want)
		}
	}
}

func TestResolveCurrentUser(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}

	cfg := Config{User: u.Username}
	uid, gid, err := cfg.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	wantUID, _ := strconv.Atoi(u.Uid)
	wantGID, _ := strconv.Atoi(u.Gid)
	if uid != wantUID {
		t.Errorf("uid = %d, want %d", uid, wantUID)
	}
	if gid != wantGID {
		t.Errorf("gid = %d, want %d", gid, wantGID)
	}
}

func TestResolveUnknownUser(t *testing.T) {
	cfg := Config{User: "no-such-user-tarpitd"}
	if _, _, err := cfg.resolve(); err == nil {
		t.Error("resolve accepted an unknown user")
	}
}
