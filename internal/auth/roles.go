package auth

import "strings"

// 账号角色。
const (
	RoleAdmin    = "admin"
	RoleHR       = "hr"
	RoleEmployee = "employee"
)

// NormalizeRole 统一为小写并判断角色是否有效。
func NormalizeRole(role string) (string, bool) {
	r := strings.ToLower(strings.TrimSpace(role))
	switch r {
	case RoleAdmin, RoleHR, RoleEmployee:
		return r, true
	}
	return "", false
}

// CanManageTemplates 判断角色能否维护模板并开具工资单。
func CanManageTemplates(role string) bool {
	return role == RoleAdmin || role == RoleHR
}
