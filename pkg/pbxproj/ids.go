package pbxproj

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// newObjectID returns a 24-digit uppercase hex identifier, the width Xcode
// uses, that taken does not report as in use.
func newObjectID(taken func(string) bool) string {
	for {
		u := uuid.New()
		id := strings.ToUpper(hex.EncodeToString(u[:12]))
		if !taken(id) {
			return id
		}
	}
}
