//go:build linux

package system

import (
	"github.com/acobaugh/osrelease"
	"golang.org/x/sys/unix"
)

func getKernelVersion() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}

func getOperatingSystemName() (string, error) {
	release, err := osrelease.Read()
	if err != nil {
		return "Linux", nil
	}

	if release["PRETTY_NAME"] != "" {
		return release["PRETTY_NAME"], nil
	} else if release["NAME"] != "" {
		return release["NAME"], nil
	}
	return "Linux", nil
}
