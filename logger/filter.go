package logger

import (
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// maxFilterDepth bounds recursion into nested maps and slices.
const maxFilterDepth = 8

// FilterConfig defines which field names are masked and with what.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of the field name.
	SensitiveFields []string
	MaskValue       string
}

// DefaultFilterConfig masks credentials, secrets and connection URLs.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "api_key", "apikey",
			"token", "authorization",
			"credential",
			"broker_url", "amqp_url", "database_url", "dsn",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach the log writer.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter; a nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive. URLs keep their structure
// and only lose the password part of the user info.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if !f.isSensitiveField(key) || value == "" {
		return value
	}
	if masked, ok := f.maskURL(value); ok {
		return masked
	}
	return f.config.MaskValue
}

// FilterValue masks value when key is sensitive and descends into
// map[string]any and []any values.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, maxFilterDepth)
}

// FilterFields filters a map of fields for sensitive data.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if f.isSensitiveField(key) {
		if s, ok := value.(string); ok {
			return f.FilterString(key, s)
		}
		return f.config.MaskValue
	}
	if depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = f.filterValue(k, elem, depth-1)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = f.filterValue(key, elem, depth-1)
		}
		return out
	default:
		return value
	}
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func (f *SensitiveDataFilter) maskURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return "", false
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.User == nil {
		return "", false
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return value, true
	}

	var b strings.Builder
	b.WriteString(parsed.Scheme)
	b.WriteString("://")
	b.WriteString(parsed.User.Username())
	b.WriteByte(':')
	b.WriteString(f.config.MaskValue)
	b.WriteByte('@')
	b.WriteString(parsed.Host)
	b.WriteString(parsed.EscapedPath())
	if parsed.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(parsed.RawQuery)
	}
	return b.String(), true
}
