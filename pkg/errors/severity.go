package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity is the runtime severity bitmask attached to every reported condition.
// Values mirror the host runtime's error levels so reporting masks can be
// combined with bitwise operators.
type Severity int

const (
	EError            Severity = 1
	EWarning          Severity = 2
	EParse            Severity = 4
	ENotice           Severity = 8
	ECoreError        Severity = 16
	ECoreWarning      Severity = 32
	ECompileError     Severity = 64
	ECompileWarning   Severity = 128
	EUserError        Severity = 256
	EUserWarning      Severity = 512
	EUserNotice       Severity = 1024
	EStrict           Severity = 2048
	ERecoverableError Severity = 4096
	EDeprecated       Severity = 8192
	EUserDeprecated   Severity = 16384

	// EAll enables every severity in a reporting mask.
	EAll Severity = 32767
)

var severityNames = map[Severity]string{
	EError:            "E_ERROR",
	EWarning:          "E_WARNING",
	EParse:            "E_PARSE",
	ENotice:           "E_NOTICE",
	ECoreError:        "E_CORE_ERROR",
	ECoreWarning:      "E_CORE_WARNING",
	ECompileError:     "E_COMPILE_ERROR",
	ECompileWarning:   "E_COMPILE_WARNING",
	EUserError:        "E_USER_ERROR",
	EUserWarning:      "E_USER_WARNING",
	EUserNotice:       "E_USER_NOTICE",
	EStrict:           "E_STRICT",
	ERecoverableError: "E_RECOVERABLE_ERROR",
	EDeprecated:       "E_DEPRECATED",
	EUserDeprecated:   "E_USER_DEPRECATED",
	EAll:              "E_ALL",
}

// String returns the constant name, e.g. "E_USER_ERROR".
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Severity(" + strconv.Itoa(int(s)) + ")"
}

// ParseSeverity accepts a constant name ("E_USER_ERROR", case-insensitive) or a
// decimal value.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return Severity(n), true
	}
	upper := strings.ToUpper(s)
	for sev, name := range severityNames {
		if name == upper {
			return sev, true
		}
	}
	return 0, false
}

// ParseMask parses a reporting mask such as "E_ALL & ~E_NOTICE" or
// "E_USER_ERROR|E_RECOVERABLE_ERROR". Operands are severity names or numbers,
// optionally negated with "~". "&" binds tighter than "|".
func ParseMask(s string) (Severity, error) {
	var mask Severity
	for _, term := range strings.Split(s, "|") {
		var value Severity
		for i, operand := range strings.Split(term, "&") {
			sev, err := parseOperand(operand)
			if err != nil {
				return 0, fmt.Errorf("invalid mask %q: %w", s, err)
			}
			if i == 0 {
				value = sev
			} else {
				value &= sev
			}
		}
		mask |= value
	}
	return mask, nil
}

func parseOperand(operand string) (Severity, error) {
	operand = strings.TrimSpace(operand)
	negate := strings.HasPrefix(operand, "~")
	name := strings.TrimSpace(strings.TrimPrefix(operand, "~"))

	sev, ok := ParseSeverity(name)
	if !ok {
		return 0, fmt.Errorf("unknown severity %q", name)
	}
	if negate {
		return EAll &^ sev, nil
	}
	return sev, nil
}

// Includes reports whether the mask s has every bit of other set.
func (s Severity) Includes(other Severity) bool {
	return other != 0 && s&other == other
}

// IsInformational reports whether s is one of the severities that are never
// escalated: notices, warnings and deprecations.
func (s Severity) IsInformational() bool {
	switch s {
	case ENotice, EWarning, EUserNotice, EUserWarning, EDeprecated:
		return true
	}
	return false
}

// IsFatal reports whether a last-recorded error of this severity means the
// execution unit died abnormally.
func (s Severity) IsFatal() bool {
	switch s {
	case EError, EParse, ECoreError, ECoreWarning, ECompileError, ECompileWarning, EUserError:
		return true
	}
	return false
}

// IsUnhandleable reports whether user error hooks are bypassed for s. These
// severities always terminate the execution unit.
func (s Severity) IsUnhandleable() bool {
	switch s {
	case EError, EParse, ECoreError, ECoreWarning, ECompileError, ECompileWarning:
		return true
	}
	return false
}
