package server

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// SetFileDescriptorLimit clamps RLIMIT_NOFILE to n, matching spec.md
// §4.9's "file-descriptor limit is set to the configured value, clamped
// by RLIMIT_NOFILE". A requested value above the hard limit is silently
// clamped down to it rather than failing startup.
func SetFileDescriptorLimit(n int) error {
	if n <= 0 {
		return nil
	}
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("getrlimit: %w", err)
	}
	want := uint64(n)
	if want > rlimit.Max {
		want = rlimit.Max
	}
	rlimit.Cur = want
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("setrlimit: %w", err)
	}
	return nil
}

// DropPrivileges switches the process to the named user's uid/gid. Per
// spec.md §4.9, this happens after listening sockets are already open
// when the daemon was started as root with --user, so the privileged
// ports (if any) remain bindable.
func DropPrivileges(username string) error {
	if username == "" {
		return nil
	}
	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("lookup user %q: %w", username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parse gid for %q: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parse uid for %q: %w", username, err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}
