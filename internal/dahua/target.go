package dahua

import (
	"fmt"
	"strings"
)

// Characters never valid in a host and likely to indicate copy-paste of a URL
// or an injection attempt.
const hostBadChars = " '\";&|\r\n"

// binaryPort is Dahua's proprietary binary protocol port. Users regularly
// paste it instead of the HTTP port; it can never work here.
const binaryPort = 37777

// Normalize validates a host/port pair and returns the NVR base URL.
// No DNS resolution is performed. Failures are tagged INVALID_TARGET.
func Normalize(host string, port int) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", newError(CodeInvalidTarget, "host is empty")
	}
	if strings.ContainsAny(host, hostBadChars) {
		return "", newError(CodeInvalidTarget, "host %q contains invalid characters", host)
	}
	if port < 1 || port > 65535 {
		return "", newError(CodeInvalidTarget, "port %d out of range", port)
	}
	if port == binaryPort {
		return "", newError(CodeInvalidTarget, "port 37777 is the Dahua binary protocol, use the HTTP port (usually 80)")
	}
	return fmt.Sprintf("http://%s:%d", host, port), nil
}
