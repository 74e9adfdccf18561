package browser

import "strings"

// RequestBlocker decides whether an outgoing sub-request is dropped.
type RequestBlocker func(url string) bool

// passkeyPatterns match passkey/WebAuthn initiation calls that otherwise pop
// native OS prompts over headless windows.
var passkeyPatterns = []string{
	"/checkpoint/pk/initiatelogin",
	"/checkpoint/lg/passkey",
	"/passkey/",
	"webauthn",
}

// BlockPasskeyRequests drops passkey/WebAuthn initiation requests and nothing
// else.
func BlockPasskeyRequests(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range passkeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
