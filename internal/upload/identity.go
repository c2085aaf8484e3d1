package upload

import (
	"crypto/md5" // #nosec G501 -- content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// Identity derives the record id for a chunk: the hex MD5 of the text and
// the canonical JSON form of its metadata. Equal inputs always give equal
// ids, so re-ingesting a corpus overwrites instead of duplicating.
func Identity(text string, md Metadata) (string, error) {
	if md == nil {
		md = Metadata{}
	}
	for k := range md {
		if !utf8.ValidString(k) {
			return "", &MalformedMetadataError{Key: k, Reason: "key is not valid UTF-8"}
		}
	}
	canonical, err := json.Marshal(md)
	if err != nil {
		var mErr *MalformedMetadataError
		if errors.As(err, &mErr) {
			return "", mErr
		}
		return "", &MalformedMetadataError{Reason: err.Error()}
	}

	h := md5.New() // #nosec G401
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
