package postgres

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func encodeMetadata(md map[string]string) ([]byte, error) {
	if md == nil {
		md = map[string]string{}
	}
	return json.Marshal(md)
}

func decodeMetadata(b []byte) (map[string]string, error) {
	md := map[string]string{}
	if len(b) == 0 {
		return md, nil
	}
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, err
	}
	return md, nil
}
