package scribepool

import (
	"regexp"
	"strconv"
	"time"
)

// The provider reports quota state as free prose inside 429 bodies, e.g.
//
//	Rate limit reached for model `whisper-large-v3-turbo` ... Limit 7200,
//	Used 5588, Requested 1784. Please try again in 1m26.334s.
//
// Two independent signals are extracted: the authoritative usage figures and
// the cooldown. Either may be missing. This parser is the single point
// coupled to the provider's wording; replace it here if a structured error
// contract ever appears.
var (
	usageRe    = regexp.MustCompile(`Limit (\d+), Used (\d+)`)
	cooldownRe = regexp.MustCompile(`try again in (?:(\d+)h)?(?:(\d+)m)?(?:(\d+(?:\.\d+)?)s)?`)
)

type quotaDetails struct {
	limit    int
	used     int
	hasUsage bool

	wait    time.Duration
	hasWait bool
}

// parseQuotaMessage extracts whatever quota signals the message contains.
// A message matching neither pattern yields the zero value; callers must
// fail safe toward "unavailable" in that case.
func parseQuotaMessage(msg string) quotaDetails {
	var d quotaDetails

	if m := usageRe.FindStringSubmatch(msg); m != nil {
		limit, err1 := strconv.Atoi(m[1])
		used, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			d.limit = limit
			d.used = used
			d.hasUsage = true
		}
	}

	if m := cooldownRe.FindStringSubmatch(msg); m != nil {
		// All three components are optional in the provider's prose;
		// an entirely empty match is not a cooldown.
		if m[1] != "" || m[2] != "" || m[3] != "" {
			var secs float64
			if m[1] != "" {
				h, _ := strconv.Atoi(m[1])
				secs += float64(h) * 3600
			}
			if m[2] != "" {
				mins, _ := strconv.Atoi(m[2])
				secs += float64(mins) * 60
			}
			if m[3] != "" {
				s, err := strconv.ParseFloat(m[3], 64)
				if err == nil {
					secs += s
				}
			}
			d.wait = time.Duration(secs * float64(time.Second))
			d.hasWait = true
		}
	}

	return d
}
