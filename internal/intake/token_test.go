package intake_test

import (
	"regexp"
	"testing"

	"github.com/garnizeh/wildspot/internal/intake"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/stretchr/testify/assert"
)

var tokenRE = regexp.MustCompile(`^[0-9A-Za-z]{8}$`)

func TestNewShareToken_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tok := intake.NewShareToken()
		if !tokenRE.MatchString(tok) {
			t.Fatalf("bad token %q", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q after %d draws", tok, i)
		}
		seen[tok] = struct{}{}
	}
}

func TestGenerateShareToken_NoOpWhenSet(t *testing.T) {
	s := &models.Spotting{}
	intake.GenerateShareToken(s)
	first := s.ShareToken
	assert.Len(t, first, 8)

	intake.GenerateShareToken(s)
	assert.Equal(t, first, s.ShareToken)
}
