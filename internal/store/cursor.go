package store

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const (
	defaultScanPageSize = 100
	maxScanPageSize     = 1000
)

type scanCursor struct {
	LastID string `json:"lastId"`
}

// EncodeCursor turns the last key of a page into an opaque continuation token.
func EncodeCursor(lastID string) string {
	if lastID == "" {
		return ""
	}
	raw, _ := json.Marshal(scanCursor{LastID: lastID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor returns the key to resume after. An empty token starts a scan.
func DecodeCursor(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidCursor
	}
	var cursor scanCursor
	if err := json.Unmarshal(raw, &cursor); err != nil || cursor.LastID == "" {
		return "", ErrInvalidCursor
	}
	return cursor.LastID, nil
}

func normalizePageSize(limit int) int {
	if limit <= 0 {
		return defaultScanPageSize
	}
	if limit > maxScanPageSize {
		return maxScanPageSize
	}
	return limit
}
