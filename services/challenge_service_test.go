package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHashtag(t *testing.T) {
	cases := map[string]string{
		"#Corrida":   "corrida",
		"  #Água  ":  "agua",
		"LeituraDia": "leituradia",
		"agua":       "agua",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeHashtag(raw), "raw=%q", raw)
	}
}

func TestDeriveDuration(t *testing.T) {
	start := date(2026, 3, 1)
	end := date(2026, 3, 7)
	sameDay := start
	inverted := date(2026, 2, 1)
	farEnd := start.AddDate(2, 0, 0)

	assert.Equal(t, 7, deriveDuration(&start, &end, 30))
	assert.Equal(t, 1, deriveDuration(&start, &sameDay, 30))
	assert.Equal(t, 1, deriveDuration(&start, &inverted, 30))
	assert.Equal(t, 365, deriveDuration(&start, &farEnd, 30))

	// Without both dates the fallback wins, clamped.
	assert.Equal(t, 30, deriveDuration(nil, &end, 30))
	assert.Equal(t, 1, deriveDuration(nil, nil, 0))
	assert.Equal(t, 365, deriveDuration(nil, nil, 1000))
}

func TestEqualDatePtr(t *testing.T) {
	a := date(2026, 3, 1)
	b := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	c := date(2026, 3, 2)

	assert.True(t, equalDatePtr(&a, &b))
	assert.False(t, equalDatePtr(&a, &c))
	assert.True(t, equalDatePtr(nil, nil))
	assert.False(t, equalDatePtr(&a, nil))
}
