package client

import (
	"fmt"

	"github.com/bft-labs/dlclient/pkg/lifecycle"
	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/state"
)

// Version is the current version of the client package.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version compatible with this version.
const MinCompatibleVersion = "1.0.0"

type moduleVersion struct {
	version    string
	minVersion string
}

func moduleVersions() map[string]moduleVersion {
	return map[string]moduleVersion{
		"client":    {Version, MinCompatibleVersion},
		"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"state":     {state.Version, state.MinCompatibleVersion},
		"log":       {log.Version, log.MinCompatibleVersion},
	}
}

// ModuleVersions returns the version of every sub-module.
func ModuleVersions() map[string]string {
	out := make(map[string]string)
	for name, m := range moduleVersions() {
		out[name] = m.version
	}
	return out
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	for name, m := range moduleVersions() {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
