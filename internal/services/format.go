package services

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// Rupiah formats an amount with Indonesian digit grouping, e.g. "Rp 10.000".
func Rupiah(amount int64) string {
	return rupiahPrinter.Sprintf("Rp %d", amount)
}
