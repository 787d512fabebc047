package config

import (
	"net/url"
	"strings"
)

// MaskURL hides the password or token in a connection url for display.
// Unparseable urls are masked entirely.
func MaskURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	} else {
		// nats://token@host carries the token as the username.
		u.User = url.User("xxxxx")
	}
	return u.String()
}

// Display returns the value of key with secrets masked.
func (c *Config) Display(key string) (string, error) {
	value, err := c.Get(key)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(key) {
	case "nats.url":
		return MaskURL(value), nil
	case "stage.path", "log.dir":
		if value == "" {
			return "(not set)", nil
		}
	}
	return value, nil
}
