package ingest

import "encoding/json"

func jsonNumber(f float64) (json.RawMessage, error) {
	return json.Marshal(f)
}
