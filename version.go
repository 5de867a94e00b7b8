package termsync

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is the client library version, advertised in the handshake.
const Version = "0.4.0"

// Minimum host version whose sync endpoint understands resize frames.
var resizeMinRC = semver.MustParse("0.2.0-rc4")

var channelSuffix = regexp.MustCompile(`-([a-zA-Z]+)\d*$`)

// extractChannel returns the release channel from a version string:
// "dev", "rc", or "release".
func extractChannel(version string) string {
	version = strings.TrimPrefix(version, "v")

	// X.Y.Z-dev-<sha> builds
	if strings.Contains(version, "-dev-") || strings.HasSuffix(version, "-dev") {
		return "dev"
	}

	matches := channelSuffix.FindStringSubmatch(version)
	if len(matches) > 1 {
		suffix := matches[1]
		if strings.HasPrefix(suffix, "dev") {
			return "dev"
		}
		if strings.HasPrefix(suffix, "rc") {
			return "rc"
		}
		return suffix
	}

	return "release"
}

// hostAcceptsResize reports whether a host at the advertised version handles
// resize frames. Hosts older than rc4 of the 0.2 line dropped the whole
// connection on frame types they did not know. Unknown or unparseable
// versions get the conservative answer.
func hostAcceptsResize(version string) bool {
	if version == "" {
		return false
	}

	channel := extractChannel(version)
	if channel == "dev" {
		return true
	}

	v, err := semver.NewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return false
	}

	if channel == "rc" {
		return v.GreaterThan(resizeMinRC) || v.Equal(resizeMinRC)
	}

	return true
}
