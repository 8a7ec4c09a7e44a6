// Package htmlrewrite implements an optional HTML body-rewrite stage that
// is not part of the default response path (proxied response bodies pass
// through verbatim). It is never invoked from the server's request
// handlers; a caller must opt in explicitly.
package htmlrewrite

import (
	"bytes"
	"regexp"
)

// attrRef matches an href/src attribute whose value starts with a single
// leading slash (a root-relative link), capturing the quote style and the
// path that follows the slash.
var attrRef = regexp.MustCompile(`(?i)\b(href|src)=("|')/([^/][^"']*)?("|')`)

// RewriteRootRelativeLinks rewrites root-relative href/src attributes in
// an HTML document so they resolve back through a client's proxy path
// instead of the relay server's own root. "/assets/app.js" becomes
// "/proxy/{clientID}/assets/app.js"; absolute URLs, protocol-relative
// URLs, and already-prefixed paths are left untouched.
//
// This is a targeted regex transform rather than a full DOM rewrite —
// sufficient for the common case this stage exists to serve (static
// asset links in simple HTML pages) without pulling in a full HTML
// parsing dependency.
func RewriteRootRelativeLinks(body []byte, clientID string) []byte {
	prefix := []byte("/proxy/" + clientID + "/")

	proxyPrefix := []byte("proxy/" + clientID + "/")

	return attrRef.ReplaceAllFunc(body, func(match []byte) []byte {
		groups := attrRef.FindSubmatch(match)
		attr, openQuote, rest, closeQuote := groups[1], groups[2], groups[3], groups[4]

		if bytes.HasPrefix(rest, proxyPrefix) {
			return match
		}

		out := make([]byte, 0, len(match)+len(prefix))
		out = append(out, attr...)
		out = append(out, '=')
		out = append(out, openQuote...)
		out = append(out, prefix...)
		out = append(out, rest...)
		out = append(out, closeQuote...)
		return out
	})
}
