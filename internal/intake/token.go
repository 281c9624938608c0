package intake

import (
	"encoding/binary"

	"github.com/garnizeh/wildspot/internal/models"
	"github.com/google/uuid"
)

const (
	shareTokenLen = 8
	base62        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// NewShareToken returns an 8-character base62 token drawn from a random UUID.
func NewShareToken() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[8:])
	buf := make([]byte, shareTokenLen)
	for i := range buf {
		buf[i] = base62[n%62]
		n /= 62
	}
	return string(buf)
}

// GenerateShareToken assigns a share token to s unless it already has one.
func GenerateShareToken(s *models.Spotting) {
	if s.ShareToken != "" {
		return
	}
	s.ShareToken = NewShareToken()
}
