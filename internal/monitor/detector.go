package monitor

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// ProbeDetector analyzes scripts for attempts to reach capabilities the
// sandbox withholds. The sandbox enforces regardless; this is a signal
// layer so hosts can surface or alert on scripts that try.
type ProbeDetector struct {
	patterns []DetectionPattern
}

// DetectionPattern defines a suspicious pattern to match.
type DetectionPattern struct {
	Name        string
	Description string
	Regex       *regexp.Regexp
	Severity    Severity
}

// Severity levels for detected probes.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Detection represents a detected suspicious pattern.
type Detection struct {
	Pattern  string `json:"pattern"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
	Line     int    `json:"line,omitempty"`
}

// NewProbeDetector creates a detector with default patterns.
func NewProbeDetector() *ProbeDetector {
	return &ProbeDetector{
		patterns: defaultPatterns(),
	}
}

// AnalyzeScript checks a script for capability probes before evaluation.
func (d *ProbeDetector) AnalyzeScript(source string) []Detection {
	var detections []Detection

	lines := strings.Split(source, "\n")
	for i, line := range lines {
		for _, p := range d.patterns {
			if p.Regex.MatchString(line) {
				det := Detection{
					Pattern:  p.Name,
					Severity: p.Severity.String(),
					Detail:   p.Description,
					Line:     i + 1,
				}
				detections = append(detections, det)

				log.Warn().
					Str("pattern", p.Name).
					Str("severity", p.Severity.String()).
					Int("line", i+1).
					Msg("capability probe detected in script")
			}
		}
	}

	return detections
}

func defaultPatterns() []DetectionPattern {
	return []DetectionPattern{
		{
			Name:        "filesystem_probe",
			Description: "Reaching for the io library",
			Regex:       regexp.MustCompile(`\bio\s*[.\[]`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "process_probe",
			Description: "Reaching for the os library",
			Regex:       regexp.MustCompile(`\bos\s*[.\[]`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "loader_probe",
			Description: "Attempting dynamic code loading",
			Regex:       regexp.MustCompile(`\b(load|loadstring|loadfile|dofile)\s*\(`),
			Severity:    SeverityHigh,
		},
		{
			Name:        "module_probe",
			Description: "Attempting module loading",
			Regex:       regexp.MustCompile(`\brequire\s*[('"]|\bpackage\s*[.\[]`),
			Severity:    SeverityMedium,
		},
		{
			Name:        "introspection_probe",
			Description: "Reaching for the debug library",
			Regex:       regexp.MustCompile(`\bdebug\s*[.\[]`),
			Severity:    SeverityMedium,
		},
		{
			Name:        "gc_probe",
			Description: "Attempting to drive the collector",
			Regex:       regexp.MustCompile(`\bcollectgarbage\s*\(`),
			Severity:    SeverityLow,
		},
		{
			Name:        "global_table_probe",
			Description: "Walking the global environment",
			Regex:       regexp.MustCompile(`\b(_G|_ENV|getfenv|setfenv)\b`),
			Severity:    SeverityLow,
		},
	}
}
