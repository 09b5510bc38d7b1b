package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keyPrefix = "ajaxctl:checkpoint"

// Key identifies a batch run: the same list file replayed with the same
// method and templates resumes the same checkpoint.
type Key struct {
	// File is the list file path, ideally absolute.
	File string

	Method           string
	EndpointTemplate string
	BodyTemplate     string
}

// String generates a deterministic Redis key.
// Format: ajaxctl:checkpoint:<method>:<sha256 of file and templates>
//
// Example:
//
//	ajaxctl:checkpoint:PUT:9f86d081884c7d65...
func (k Key) String() string {
	h := sha256.New()
	for _, part := range []string{k.File, k.EndpointTemplate, k.BodyTemplate} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return strings.Join([]string{keyPrefix, strings.ToUpper(k.Method), hex.EncodeToString(h.Sum(nil))}, ":")
}
