// Package fitstest builds small FITS files for tests.
package fitstest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Card is a header card to encode. Value may be bool, string, int, int64 or
// float64. A nil Value produces a commentary card from Comment.
type Card struct {
	Keyword string
	Value   any
	Comment string
}

// HDU is one header and data unit to encode.
type HDU struct {
	Cards []Card
	Data  []byte
	// OmitEnd leaves out the END card (only meaningful for the last HDU).
	OmitEnd bool
}

// Primary returns a primary HDU with the mandatory keywords, an 8-bit data
// array holding data, and the extra cards.
func Primary(data []byte, extra ...Card) HDU {
	cards := []Card{
		{Keyword: "SIMPLE", Value: true},
		{Keyword: "BITPIX", Value: 8},
		{Keyword: "NAXIS", Value: naxis(data)},
	}
	if len(data) > 0 {
		cards = append(cards, Card{Keyword: "NAXIS1", Value: len(data)})
	}
	return HDU{Cards: append(cards, extra...), Data: data}
}

// Image returns an IMAGE extension HDU.
func Image(data []byte, extra ...Card) HDU {
	cards := []Card{
		{Keyword: "XTENSION", Value: "IMAGE"},
		{Keyword: "BITPIX", Value: 8},
		{Keyword: "NAXIS", Value: naxis(data)},
	}
	if len(data) > 0 {
		cards = append(cards, Card{Keyword: "NAXIS1", Value: len(data)})
	}
	cards = append(cards,
		Card{Keyword: "PCOUNT", Value: 0},
		Card{Keyword: "GCOUNT", Value: 1},
	)
	return HDU{Cards: append(cards, extra...), Data: data}
}

func naxis(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	return 1
}

// Encode serializes the HDUs into FITS bytes.
func Encode(hdus ...HDU) []byte {
	var sb strings.Builder
	for _, hdu := range hdus {
		var header strings.Builder
		for _, c := range hdu.Cards {
			header.WriteString(formatCard(c))
		}
		if !hdu.OmitEnd {
			header.WriteString(pad("END", 80))
		}
		sb.WriteString(padBlock(header.String(), ' '))
		if len(hdu.Data) > 0 {
			sb.WriteString(padBlock(string(hdu.Data), 0))
		}
	}
	return []byte(sb.String())
}

// WriteFile writes the encoded HDUs to path, creating parent directories.
func WriteFile(t testing.TB, path string, hdus ...HDU) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Encode(hdus...), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func formatCard(c Card) string {
	kw := pad(strings.ToUpper(c.Keyword), 8)
	if c.Value == nil {
		return pad(kw+c.Comment, 80)
	}

	var value string
	switch v := c.Value.(type) {
	case bool:
		if v {
			value = fmt.Sprintf("%20s", "T")
		} else {
			value = fmt.Sprintf("%20s", "F")
		}
	case string:
		value = "'" + padRight(strings.ReplaceAll(v, "'", "''"), 8) + "'"
	case int:
		value = fmt.Sprintf("%20d", v)
	case int64:
		value = fmt.Sprintf("%20d", v)
	case float64:
		value = fmt.Sprintf("%20G", v)
	default:
		value = fmt.Sprintf("%20v", v)
	}

	card := kw + "= " + value
	if c.Comment != "" {
		card += " / " + c.Comment
	}
	return pad(card, 80)
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func padBlock(s string, fill byte) string {
	const block = 2880
	if rem := len(s) % block; rem != 0 {
		s += strings.Repeat(string(fill), block-rem)
	}
	return s
}
