// Package license gates how many members a pod may onboard. It mirrors the
// original implementation's license service: a license file on disk with a
// packaged fallback for unlicensed pods.
package license

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// DefaultMemberLimit is used when no license file is present and
// Config.MemberLimit (PROSE_MEMBER_LIMIT) was not overridden.
const DefaultMemberLimit = 100

// Gate reports whether a pod is allowed to onboard more members.
type Gate struct {
	limit int
}

// NewGate builds a Gate. If path is non-empty and readable, its
// "member_limit = N" line overrides limit; otherwise limit is used as-is.
func NewGate(path string, limit int) *Gate {
	if limit <= 0 {
		limit = DefaultMemberLimit
	}
	g := &Gate{limit: limit}
	if path == "" {
		return g
	}
	if fileLimit, ok := readLicenseLimit(path); ok {
		g.limit = fileLimit
	}
	return g
}

// Limit returns the maximum number of members this pod may have.
func (g *Gate) Limit() int {
	return g.limit
}

// Allows reports whether currentCount more members may be added.
func (g *Gate) Allows(currentCount int) bool {
	return currentCount < g.limit
}

func readLicenseLimit(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "member_limit") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
