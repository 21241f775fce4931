package errors

import (
	"sort"
	"sync"
)

// CodeDefinition maps a runtime severity to the names written in the fatal log
type CodeDefinition struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Help     string   `json:"help"`
}

// registry stores all registered definitions
var (
	registry   = make(map[Severity]CodeDefinition)
	registryMu sync.RWMutex
)

// Default definitions. Codes follow CATEGORY-NUMBER:
//   - FTL: conditions that end the execution unit
//   - ERR: recoverable errors promoted to exceptions
//   - WRN: informational conditions
//   - EXC: uncaught exceptions that carry no runtime severity
var defaultCodes = map[Severity]CodeDefinition{
	EError: {
		Severity: EError,
		Name:     "Fatal Error",
		Code:     "FTL-001",
		Help:     "Execution stopped; out of memory, time limit or a runtime failure",
	},
	EParse: {
		Severity: EParse,
		Name:     "Parse Error",
		Code:     "FTL-002",
		Help:     "Source could not be parsed",
	},
	ECoreError: {
		Severity: ECoreError,
		Name:     "Core Error",
		Code:     "FTL-003",
		Help:     "Runtime failed during startup",
	},
	ECoreWarning: {
		Severity: ECoreWarning,
		Name:     "Core Warning",
		Code:     "FTL-004",
		Help:     "Runtime reported a startup warning",
	},
	ECompileError: {
		Severity: ECompileError,
		Name:     "Compile Error",
		Code:     "FTL-005",
		Help:     "Compilation failed",
	},
	ECompileWarning: {
		Severity: ECompileWarning,
		Name:     "Compile Warning",
		Code:     "FTL-006",
		Help:     "Compilation produced a warning",
	},
	EUserError: {
		Severity: EUserError,
		Name:     "User Error",
		Code:     "ERR-001",
		Help:     "Application raised an error",
	},
	ERecoverableError: {
		Severity: ERecoverableError,
		Name:     "Recoverable Error",
		Code:     "ERR-002",
		Help:     "A catchable runtime error was not handled",
	},
	EStrict: {
		Severity: EStrict,
		Name:     "Runtime Notice",
		Code:     "ERR-003",
		Help:     "Code relies on behavior the runtime discourages",
	},
	EUserDeprecated: {
		Severity: EUserDeprecated,
		Name:     "User Deprecated",
		Code:     "ERR-004",
		Help:     "Application used a feature it marked deprecated",
	},
	EWarning: {
		Severity: EWarning,
		Name:     "Warning",
		Code:     "WRN-001",
		Help:     "Runtime warning",
	},
	ENotice: {
		Severity: ENotice,
		Name:     "Notice",
		Code:     "WRN-002",
		Help:     "Runtime notice",
	},
	EUserWarning: {
		Severity: EUserWarning,
		Name:     "User Warning",
		Code:     "WRN-003",
		Help:     "Application warning",
	},
	EUserNotice: {
		Severity: EUserNotice,
		Name:     "User Notice",
		Code:     "WRN-004",
		Help:     "Application notice",
	},
	EDeprecated: {
		Severity: EDeprecated,
		Name:     "Deprecated",
		Code:     "WRN-005",
		Help:     "Runtime feature is deprecated",
	},
	0: {
		Severity: 0,
		Name:     "Uncaught Exception",
		Code:     "EXC-001",
		Help:     "An exception escaped every handler",
	},
}

func init() {
	for sev, def := range defaultCodes {
		registry[sev] = def
	}
}

// Register adds or replaces a definition
func Register(def CodeDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[def.Severity] = def
}

// Lookup retrieves the definition for a severity
func Lookup(sev Severity) CodeDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if def, ok := registry[sev]; ok {
		return def
	}

	return CodeDefinition{
		Severity: sev,
		Name:     "Unknown Error",
		Code:     "UNK-000",
		Help:     "No additional help available for this severity",
	}
}

// Name returns the friendly category name for a severity
func Name(sev Severity) string {
	return Lookup(sev).Name
}

// LocalCode returns the stable short code for a severity
func LocalCode(sev Severity) string {
	return Lookup(sev).Code
}

// AllCodes returns every registered definition ordered by severity
func AllCodes() []CodeDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]CodeDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Severity < result[j].Severity
	})
	return result
}
