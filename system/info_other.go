//go:build !linux

package system

import (
	"runtime"

	"emperror.dev/errors"
)

func getKernelVersion() (string, error) {
	return "", errors.New("system: kernel version is only available on linux")
}

func getOperatingSystemName() (string, error) {
	return runtime.GOOS, nil
}
