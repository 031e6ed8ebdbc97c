package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-zA-Z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*@(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\+91[6-9]\d{9}$`),  // +91 + mobile
		regexp.MustCompile(`^91[6-9]\d{9}$`),    // 91 without +
		regexp.MustCompile(`^0?[6-9]\d{9}$`),    // domestic mobile
		regexp.MustCompile(`^\+[1-9]\d{7,14}$`), // any E.164 number
	}
)

func ValidateEmail(email string) (bool, error) {
	if !emailRegex.MatchString(email) {
		return false, fmt.Errorf("error: email format incorrect")
	}
	return true, nil
}

func ValidatePhone(phone string) (bool, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(phone)
	for _, pattern := range phonePatterns {
		if pattern.MatchString(cleaned) {
			return true, nil
		}
	}
	return false, fmt.Errorf("phone format incorrect")
}

// GetQueryParamAsInt returns defaultValue when the parameter is absent and
// rejects negative values.
func GetQueryParamAsInt(c *gin.Context, paramName string, defaultValue int) (int, error) {
	paramValue := c.Query(paramName)
	if paramValue == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(paramValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", paramName)
	}

	if intValue < 0 {
		return 0, fmt.Errorf("invalid %s", paramName)
	}

	return intValue, nil
}

// GetQueryParamAsTime accepts either an RFC3339 timestamp or a YYYY-MM-DD date.
// A missing parameter yields the zero time.
func GetQueryParamAsTime(c *gin.Context, paramName string) (time.Time, error) {
	paramValue := c.Query(paramName)
	if paramValue == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, paramValue); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, paramValue); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s: expected RFC3339 or YYYY-MM-DD", paramName)
}
