package poolclient

import (
	"strconv"
	"strings"

	"coinshaft/internal/errs"
)

// PoolAddress is a parsed pool URL: a host and port, stripped of its scheme.
type PoolAddress struct {
	Host string
	Port string
}

// ParsePoolURL accepts the "stratum+tcp://" and "stratum://" schemes, both
// followed by a bare host:port with port in 1..=65535. Any other shape fails
// with a Configuration error.
func ParsePoolURL(raw string) (PoolAddress, error) {
	rest, ok := stripScheme(raw)
	if !ok {
		return PoolAddress{}, errs.New(errs.Configuration, "unsupported pool URL scheme: %s", raw)
	}

	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		return PoolAddress{}, errs.New(errs.Configuration, "empty pool URL host: %s", raw)
	}

	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return PoolAddress{}, errs.New(errs.Configuration, "malformed pool URL, expected host:port: %s", raw)
	}

	host := rest[:idx]
	port := rest[idx+1:]
	if strings.ContainsAny(host, "/@") || strings.ContainsAny(port, "/@") {
		return PoolAddress{}, errs.New(errs.Configuration, "malformed pool URL: %s", raw)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return PoolAddress{}, errs.New(errs.Configuration, "pool URL port must be in 1..=65535: %s", raw)
	}

	return PoolAddress{Host: host, Port: port}, nil
}

func stripScheme(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "stratum+tcp://"):
		return strings.TrimPrefix(raw, "stratum+tcp://"), true
	case strings.HasPrefix(raw, "stratum://"):
		return strings.TrimPrefix(raw, "stratum://"), true
	default:
		return "", false
	}
}

// String renders the address back into "host:port" form, suitable for
// net.Dial.
func (a PoolAddress) String() string {
	return a.Host + ":" + a.Port
}
