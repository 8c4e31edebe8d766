// Package version classifies, orders and extracts mod version strings.
//
// Mod authors publish versions in several shapes: semantic versions
// ("1.0.4", "2.3.1-beta.2"), two-segment versions ("1.0-SNAPSHOT") and
// calendar dates ("13.01.2026", "2026-01-13"). Compare orders any two of
// them and HasNewer answers the only question the rest of modsync asks:
// is the catalog release strictly newer than the installed one?
package version

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Type is the detected shape of a version string.
type Type int

const (
	Unknown Type = iota
	DateEU
	DateISO
	Simple
	SemVer
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case SemVer:
		return "semver"
	case Simple:
		return "simple"
	case DateEU:
		return "date-eu"
	case DateISO:
		return "date-iso"
	default:
		return "unknown"
	}
}

const (
	layoutDateEU  = "2.1.2006"
	layoutDateISO = "2006-01-02"
)

var (
	semVerBase   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	simpleBase   = regexp.MustCompile(`^\d+\.\d+$`)
	dateEUExpr   = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`)
	dateISOExpr  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	preReleaseRe = regexp.MustCompile(`^(rc|release[-.]?candidate|beta|alpha|dev|snapshot)(?:[-.]?(.*))?$`)
)

// Pre-release priorities, higher is more stable. A release without a
// suffix outranks all of them.
var preReleasePriority = map[string]int{
	"rc":       80,
	"beta":     60,
	"alpha":    40,
	"dev":      20,
	"snapshot": 10,
}

// clean trims whitespace and a leading "v".
func clean(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') && v[1] >= '0' && v[1] <= '9' {
		v = v[1:]
	}
	return v
}

// DetectType classifies v. Calendar dates in d.M.yyyy form are checked
// before the numeric shapes because "13.01.2026" would otherwise be read
// as a three-segment version.
func DetectType(v string) Type {
	v = clean(v)
	if v == "" {
		return Unknown
	}

	if dateEUExpr.MatchString(v) {
		if _, err := time.Parse(layoutDateEU, v); err == nil {
			return DateEU
		}
	}

	base, _, _ := strings.Cut(v, "-")
	switch {
	case semVerBase.MatchString(base):
		return SemVer
	case simpleBase.MatchString(base):
		return Simple
	case dateISOExpr.MatchString(v):
		return DateISO
	}

	return Unknown
}

func isNumeric(t Type) bool {
	return t == SemVer || t == Simple
}

func typePriority(t Type) int {
	switch t {
	case SemVer, Simple:
		return 4
	case DateEU, DateISO:
		return 2
	default:
		return 0
	}
}

// Compare returns -1, 0 or 1 when a is older than, equal to or newer than b.
// An empty version is older than any non-empty one.
func Compare(a, b string) int {
	a, b = clean(a), clean(b)
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	ta, tb := DetectType(a), DetectType(b)

	if isNumeric(ta) && isNumeric(tb) {
		return compareNumeric(a, b)
	}

	if ta == tb {
		switch ta {
		case DateEU:
			return compareDates(a, b, layoutDateEU)
		case DateISO:
			return compareDates(a, b, layoutDateISO)
		default:
			return compareFold(a, b)
		}
	}

	return cmpInt(typePriority(ta), typePriority(tb))
}

// HasNewer reports whether remote is strictly newer than local. It is
// false when either side is unknown.
func HasNewer(local, remote string) bool {
	if clean(local) == "" || clean(remote) == "" {
		return false
	}
	return Compare(local, remote) < 0
}

// Higher returns the newer of a and b, preferring a on ties.
func Higher(a, b string) string {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

func compareNumeric(a, b string) int {
	baseA, preA, hasPreA := strings.Cut(a, "-")
	baseB, preB, hasPreB := strings.Cut(b, "-")

	segsA := strings.Split(baseA, ".")
	segsB := strings.Split(baseB, ".")

	n := max(len(segsA), len(segsB))
	for i := 0; i < n; i++ {
		sa, sb := "0", "0"
		if i < len(segsA) {
			sa = segsA[i]
		}
		if i < len(segsB) {
			sb = segsB[i]
		}
		if c := compareDigits(sa, sb); c != 0 {
			return c
		}
	}

	return comparePreRelease(preA, hasPreA, preB, hasPreB)
}

// compareDigits orders two unsigned decimal strings of any length.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := cmpInt(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func comparePreRelease(a string, hasA bool, b string, hasB bool) int {
	switch {
	case !hasA && !hasB:
		return 0
	case !hasA:
		return 1
	case !hasB:
		return -1
	}

	prioA, restA := preReleaseRank(a)
	prioB, restB := preReleaseRank(b)
	if prioA != prioB {
		return cmpInt(prioA, prioB)
	}

	return compareRemainder(restA, restB)
}

// preReleaseRank splits a pre-release suffix such as "beta.2" into its
// priority and remainder ("2"). Unrecognised tags rank lowest and keep the
// whole suffix as remainder.
func preReleaseRank(pre string) (int, string) {
	m := preReleaseRe.FindStringSubmatch(strings.ToLower(pre))
	if m == nil {
		return 0, pre
	}

	tag := m[1]
	if strings.HasPrefix(tag, "release") {
		tag = "rc"
	}
	return preReleasePriority[tag], m[2]
}

func compareRemainder(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return cmpInt(na, nb)
	}

	return compareFold(a, b)
}

func compareDates(a, b, layout string) int {
	da, errA := time.Parse(layout, a)
	db, errB := time.Parse(layout, b)
	if errA != nil || errB != nil {
		return compareFold(a, b)
	}
	return da.Compare(db)
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
