package system

import (
	"runtime"
)

// Version is the build version, set at link time.
var Version = "develop"

type Information struct {
	Version       string
	KernelVersion string
	OS            string
	OSType        string
	Architecture  string
}

// GetSystemInformation describes the host the firewall commands run on.
// Facts that cannot be read are reported as "unknown".
func GetSystemInformation() *Information {
	kernelVersion, err := getKernelVersion()
	if err != nil {
		kernelVersion = "unknown"
	}

	osName, err := getOperatingSystemName()
	if err != nil {
		osName = "unknown"
	}

	return &Information{
		Version:       Version,
		KernelVersion: kernelVersion,
		OS:            osName,
		OSType:        runtime.GOOS,
		Architecture:  runtime.GOARCH,
	}
}
