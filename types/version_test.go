package types //nolint:revive // types is a valid package name

import (
	"regexp"
	"testing"
)

var semver = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)

func TestVersions(t *testing.T) {
	for name, v := range map[string]string{
		"Version":         Version,
		"ContractVersion": ContractVersion,
	} {
		if !semver.MatchString(v) {
			t.Errorf("%s %q is not a valid semver", name, v)
		}
	}
	// Requester and responder are released together; a heartbeat or
	// notification from one version is only read by the same version.
	if ContractVersion != Version {
		t.Errorf("ContractVersion %q != Version %q", ContractVersion, Version)
	}
}
