package parser

import (
	"strings"

	"sigfix/internal/signal"
)

var ruffSeverity = map[string]signal.Severity{
	"F401": signal.SeverityLow,
	"F541": signal.SeverityLow,
	"F601": signal.SeverityHigh,
	"F811": signal.SeverityMedium,
	"F821": signal.SeverityHigh,
	"F823": signal.SeverityHigh,
	"F841": signal.SeverityMedium,
	"E402": signal.SeverityMedium,
	"E701": signal.SeverityLow,
	"E702": signal.SeverityLow,
	"E713": signal.SeverityLow,
	"E722": signal.SeverityMedium,
	"E731": signal.SeverityLow,
}

// mypy error codes that usually mean a runtime failure.
var mypyHighCodes = map[string]bool{
	"union-attr":   true,
	"return-value": true,
	"arg-type":     true,
	"call-arg":     true,
	"attr-defined": true,
	"name-defined": true,
	"index":        true,
	"operator":     true,
}

func SeverityForRuff(code string) signal.Severity {
	if sev, ok := ruffSeverity[code]; ok {
		return sev
	}
	if isRuffSecurityCode(code) {
		return signal.SeverityHigh
	}
	return signal.SeverityMedium
}

func SeverityForMypy(mypySeverity, code string) signal.Severity {
	if strings.EqualFold(mypySeverity, "note") {
		return signal.SeverityLow
	}
	if mypyHighCodes[code] {
		return signal.SeverityHigh
	}
	return signal.SeverityMedium
}

func SeverityForPydocstyle(string) signal.Severity {
	return signal.SeverityLow
}

// SeverityForBandit combines bandit's severity and confidence. High
// confidence raises the level by one step.
func SeverityForBandit(issueSeverity, issueConfidence string) signal.Severity {
	confident := strings.EqualFold(issueConfidence, "HIGH")
	switch strings.ToUpper(issueSeverity) {
	case "HIGH":
		if confident {
			return signal.SeverityCritical
		}
		return signal.SeverityHigh
	case "MEDIUM":
		if confident {
			return signal.SeverityHigh
		}
		return signal.SeverityMedium
	default:
		if confident {
			return signal.SeverityMedium
		}
		return signal.SeverityLow
	}
}

// ruff's flake8-bandit rules are S followed by digits.
func isRuffSecurityCode(code string) bool {
	if len(code) < 2 || code[0] != 'S' {
		return false
	}
	for _, r := range code[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
