package utils

import (
	"os"
	"slices"
	"time"

	"go.viam.com/iio/logging"
)

const (
	// DefaultSysfsRoot is where the kernel exposes IIO devices and triggers.
	DefaultSysfsRoot = "/sys/bus/iio/devices"

	// SysfsRootEnvVar overrides DefaultSysfsRoot, e.g. to point at a fixture tree.
	SysfsRootEnvVar = "IIO_SYSFS_ROOT"

	// DefaultDevRoot holds the IIO character devices.
	DefaultDevRoot = "/dev"

	// DevRootEnvVar overrides DefaultDevRoot.
	DevRootEnvVar = "IIO_DEV_ROOT"

	// DefaultSetupTimeout bounds how long device setup may take before giving up.
	DefaultSetupTimeout = 10 * time.Second

	// SetupTimeoutEnvVar overrides DefaultSetupTimeout.
	SetupTimeoutEnvVar = "IIO_SETUP_TIMEOUT"

	// DebugEnvVar turns on debug logging when set to one of EnvTrueValues.
	DebugEnvVar = "IIO_DEBUG"
)

// EnvTrueValues contains strings that we interpret as boolean true in env vars.
var EnvTrueValues = []string{"true", "yes", "1", "TRUE", "YES"}

// SysfsRoot returns the IIO sysfs root (env variable value if set, DefaultSysfsRoot otherwise).
func SysfsRoot() string {
	return stringHelper(DefaultSysfsRoot, SysfsRootEnvVar)
}

// DevRoot returns the directory holding IIO character devices.
func DevRoot() string {
	return stringHelper(DefaultDevRoot, DevRootEnvVar)
}

// DebugEnabled reports whether IIO_DEBUG asks for debug logging.
func DebugEnabled() bool {
	return slices.Contains(EnvTrueValues, os.Getenv(DebugEnvVar))
}

// GetSetupTimeout calculates the device setup timeout (env variable value if set,
// DefaultSetupTimeout otherwise).
func GetSetupTimeout(logger logging.Logger) time.Duration {
	return timeoutHelper(DefaultSetupTimeout, SetupTimeoutEnvVar, logger)
}

func stringHelper(defaultVal, envVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}

func timeoutHelper(defaultTimeout time.Duration, timeoutEnvVar string, logger logging.Logger) time.Duration {
	if timeoutVal := os.Getenv(timeoutEnvVar); timeoutVal != "" {
		timeout, err := time.ParseDuration(timeoutVal)
		if err != nil {
			logger.Warnf("Failed to parse %s env var, falling back to default %v timeout",
				timeoutEnvVar, defaultTimeout)
			return defaultTimeout
		}
		return timeout
	}
	return defaultTimeout
}
