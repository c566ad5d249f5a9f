package validation

import (
	"net"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// validate is the shared go-playground validator; it caches struct metadata.
var validate = validator.New()

// Struct validates a struct based on its `validate` tags.
func Struct(s any) error {
	return validate.Struct(s)
}

// FirstError renders the first validation failure as a short client message.
func FirstError(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		field := ToSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "oneof":
			return field + " must be one of: " + fe.Param()
		case "max":
			return field + " is too long"
		case "gte":
			return field + " must not be negative"
		}
		return field + " is invalid"
	}
	return "invalid request"
}

// NormalizeTag lowercases a type tag and folds separators to underscores so
// "Home-Owners", "home owners" and "home_owners" compare equal.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer("-", "_", " ", "_").Replace(tag)
}

// ToSnakeCase converts camelCase, PascalCase, kebab-case and space separated
// keys to snake_case. Runs of capitals are treated as one word ("ZIPCode" -> "zip_code").
func ToSnakeCase(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	lastUnderscore := true
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_' || r == '.':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case unicode.IsUpper(r):
			if !lastUnderscore && i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}

// NormalizeEmail lowercases and trims an email address and reports whether it is valid.
func NormalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false
	}
	if err := validate.Var(email, "email"); err != nil {
		return email, false
	}
	return email, true
}

// NormalizePhone formats a phone number to E.164 using region as the default
// country. If parsing fails, it returns the trimmed input.
func NormalizePhone(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" || u.Hostname() == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// HostAllowed reports whether the hostname of u (port stripped, case-insensitive)
// exactly matches one of the allowed hosts.
func HostAllowed(u *url.URL, allowed []string) bool {
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return false
	}
	for _, a := range allowed {
		if host == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// IsPrivateIP checks if an IP address is in a private/reserved range.
// Used to prevent SSRF attacks against internal networks.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	if ip.IsLoopback() {
		return true
	}

	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip.IsPrivate() {
		return true
	}

	if ip.IsUnspecified() {
		return true
	}

	// Cloud metadata endpoints (AWS/GCP, Azure)
	if ip.Equal(net.ParseIP("169.254.169.254")) || ip.Equal(net.ParseIP("168.63.129.16")) {
		return true
	}

	return false
}
