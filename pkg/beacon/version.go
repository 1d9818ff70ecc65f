package beacon

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const versionLogPrefix = "beacon:version"

// SupportedVersions is the range of wallet protocol versions this client speaks.
const SupportedVersions = ">= 1, < 4"

var versionConstraint *semver.Constraints

func init() {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(fmt.Sprintf("%s - invalid constraint %q: %v", versionLogPrefix, SupportedVersions, err))
	}
	versionConstraint = c
}

// CheckVersion returns an error when v is not a parseable version inside
// SupportedVersions. Major-only versions such as "2" are accepted.
func CheckVersion(v string) error {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%s - invalid protocol version %q: %w", versionLogPrefix, v, err)
	}
	if !versionConstraint.Check(parsed) {
		return fmt.Errorf("%s - protocol version %s outside %s", versionLogPrefix, v, SupportedVersions)
	}
	return nil
}
