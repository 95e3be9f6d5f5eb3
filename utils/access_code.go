package utils

import (
	"strings"

	"github.com/google/uuid"
)

const accessCodeLen = 8

// GenerateAccessCode sinh mã mời cho match private, 8 ký tự hex in hoa.
func GenerateAccessCode() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(s[:accessCodeLen])
}

// NormalizeAccessCode bỏ khoảng trắng; chuỗi rỗng nghĩa là không có mã.
func NormalizeAccessCode(code string) string {
	return strings.TrimSpace(code)
}
