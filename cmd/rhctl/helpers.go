package main

import (
	"os"

	"github.com/shopspring/decimal"
)

func userOr(user string) string {
	if user != "" {
		return user
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "rhctl"
}

func formatHours(h float64) string {
	return decimal.NewFromFloat(h).String()
}
