package limiters

import (
	"strings"
	"time"
)

// Policy is a fixed-window budget.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

var (
	DefaultLoginPolicy        = Policy{MaxAttempts: 5, Window: 15 * time.Minute}
	DefaultRegistrationPolicy = Policy{MaxAttempts: 3, Window: time.Hour}
)

func (p Policy) orDefault(def Policy) Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	return p
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}
	return ip
}
