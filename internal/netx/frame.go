package netx

import "encoding/json"

// marshalFrame encodes v as a single JSON object with no trailing
// separator, suitable for the brace-framed control connection.
func marshalFrame(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
