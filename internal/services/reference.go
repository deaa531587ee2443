package services

import (
	"crypto/sha1"
	"encoding/hex"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// ReferenceGenerator builds the reference id sent to the gateway when a top-up is created.
// The value is only a request; the id the gateway echoes back is the one stored.
type ReferenceGenerator struct {
	now  func() time.Time
	intn func(n int) int
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{now: time.Now, intn: rand.Intn}
}

// Generate concatenates a 6-digit digest of the user id, the last 6 digits of the millisecond
// clock and a 3-digit random number, reads the result as a base-17 numeral and renders it in
// base 10.
func (g *ReferenceGenerator) Generate(userID string) string {
	digest := userDigest(userID)
	if digest == "" {
		digest = strconv.Itoa(g.intn(999999))
	}

	millis := strconv.FormatInt(g.now().UnixMilli(), 10)
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}

	raw := digest + millis + strconv.Itoa(100+g.intn(900))

	n, err := strconv.ParseUint(raw, 17, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatUint(n, 10)
}

func userDigest(userID string) string {
	sum := sha1.Sum([]byte(userID))
	var b strings.Builder
	for _, r := range hex.EncodeToString(sum[:]) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 6 {
				break
			}
		}
	}
	return b.String()
}
