package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// CanonicalizeURL fixes the ambiguity SPEC_FULL.md Open Question #3 leaves
// to the implementer: lower-case the host, drop the fragment, drop the
// query string entirely (none of the three parser families encode article
// identity in query parameters), and strip a single trailing slash from
// the path. Every parser family must route article URLs through this
// before computing a fingerprint, so external_id is deterministic
// regardless of which family produced the URL.
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// StableHash computes the deterministic content fingerprint spec.md §3
// requires: SHA-256 of (source_id, canonical_url, title), hex-encoded. It
// must be identical across processes and languages, so the digest input is
// built from a fixed, explicit field order and length-prefixed segments
// rather than naive concatenation, which would let e.g. ("1", "2x") and
// ("12", "x") collide.
func StableHash(sourceID int64, canonicalURL, title string) string {
	h := sha256.New()
	writeSegment(h, strconv.FormatInt(sourceID, 10))
	writeSegment(h, canonicalURL)
	writeSegment(h, title)
	return hex.EncodeToString(h.Sum(nil))
}

func writeSegment(h interface{ Write([]byte) (int, error) }, s string) {
	_, _ = h.Write([]byte(strconv.Itoa(len(s))))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{','})
}
