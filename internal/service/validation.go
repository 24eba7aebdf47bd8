package service

import (
	"math"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	minNameLength  = 2
	maxNameLength  = 50
	maxPhoneLength = 32
	maxPhotoLength = 2048
)

// normalizeName trims name and checks its length.
func normalizeName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(field, "is required")
	}
	n := utf8.RuneCountInString(name)
	if n < minNameLength {
		return "", invalid(field, "must be at least 2 characters long")
	}
	if n > maxNameLength {
		return "", invalid(field, "must be no longer than 50 characters")
	}
	return name, nil
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return invalid("price", "must be greater than zero")
	}
	return nil
}

func validatePhone(phone string) error {
	if len(phone) > maxPhoneLength {
		return invalid("phone", "is too long")
	}
	return nil
}

// validatePhoto accepts an empty value (clears the photo) or an http(s) URL.
func validatePhoto(photo string) error {
	if photo == "" {
		return nil
	}
	if len(photo) > maxPhotoLength {
		return invalid("photo", "is too long")
	}
	u, err := url.Parse(photo)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("photo", "must be an http or https URL")
	}
	return nil
}
