package utils

import "strings"

// MaskMobile 日志脱敏：保留前 2 位与后 2 位
func MaskMobile(m string) string {
	r := []rune(m)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}

// MaskEmail a***@example.com
func MaskEmail(e string) string {
	at := strings.LastIndexByte(e, '@')
	if at <= 0 {
		return MaskMobile(e)
	}
	return e[:1] + "***" + e[at:]
}
