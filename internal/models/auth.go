package models

import "github.com/golang-jwt/jwt/v5"

const (
	RoleFarmer  = "farmer"
	RoleService = "service"
)

type Claims struct {
	jwt.RegisteredClaims
	Id     string   `json:"id"`
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
