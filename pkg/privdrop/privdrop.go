// Package privdrop lowers the daemon's privileges after the listening
// sockets are bound: optional chroot followed by dropping to an unprivileged
// user and group. It must run exactly once, before any attacker-reachable
// code path starts serving.
package privdrop

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Config names the target identity. Empty fields are skipped.
type Config struct {
	// User is the account to run as; its primary group is used unless
	// Group overrides it.
	User string
	// Group overrides the target group.
	Group string
	// Chroot is the directory to chroot into before switching identity.
	Chroot string
}

// Enabled reports whether any drop is requested at all.
func (c Config) Enabled() bool {
	return c.User != "" || c.Group != "" || c.Chroot != ""
}

// Apply performs the drop in the only safe order: resolve names while /etc
// is still readable, chroot, then shed group and user privileges. Any error
// is fatal for the caller; a half-dropped daemon must not serve.
func (c Config) Apply(log *logrus.Logger) error {
	if !c.Enabled() {
		log.WithField("enabled", false).Info("privdrop")
		return nil
	}

	uid, gid, err := c.resolve()
	if err != nil {
		return err
	}

	if c.Chroot != "" {
		log.WithField("chroot", c.Chroot).Info("privdrop")
		if err := unix.Chroot(c.Chroot); err != nil {
			return fmt.Errorf("chroot %s: %w", c.Chroot, err)
		}
		if err := unix.Chdir("/"); err != nil {
			return fmt.Errorf("chdir /: %w", err)
		}
	}

	if gid >= 0 {
		log.WithField("group", c.groupName()).Info("privdrop")
		if err := unix.Setgroups([]int{gid}); err != nil {
			return fmt.Errorf("setgroups: %w", err)
		}
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf("setgid %d: %w", gid, err)
		}
	}

	if uid >= 0 {
		log.WithField("user", c.User).Info("privdrop")
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf("setuid %d: %w", uid, err)
		}
	}

	log.WithField("enabled", true).Info("privdrop")
	return nil
}

func (c Config) groupName() string {
	if c.Group != "" {
		return c.Group
	}
	return c.User
}

// resolve turns the configured names into numeric ids. Returns -1 for an id
// that should not be changed.
func (c Config) resolve() (uid, gid int, err error) {
	uid, gid = -1, -1

	if c.User != "" {
		u, err := user.Lookup(c.User)
		if err != nil {
			return -1, -1, fmt.Errorf("lookup user %s: %w", c.User, err)
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return -1, -1, fmt.Errorf("parse uid %q: %w", u.Uid, err)
		}
		gid, err = strconv.Atoi(u.Gid)
		if err != nil {
			return -1, -1, fmt.Errorf("parse gid %q: %w", u.Gid, err)
		}
	}

	if c.Group != "" {
		g, err := user.LookupGroup(c.Group)
		if err != nil {
			return -1, -1, fmt.Errorf("lookup group %s: %w", c.Group, err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return -1, -1, fmt.Errorf("parse gid %q: %w", g.Gid, err)
		}
	}

	return uid, gid, nil
}
