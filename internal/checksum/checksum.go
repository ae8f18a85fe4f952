package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record hashes an external record by its edit timestamp and property values.
// Map keys are marshalled in sorted order, so equal property sets always
// produce equal digests.
func Record(lastEdited time.Time, properties map[string]any) string {
	props, err := json.Marshal(properties)
	if err != nil {
		// Unmarshalable values still change the hash through the timestamp.
		props = []byte(err.Error())
	}
	h := sha256.New()
	h.Write([]byte(lastEdited.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write(props)
	return hex.EncodeToString(h.Sum(nil))
}
