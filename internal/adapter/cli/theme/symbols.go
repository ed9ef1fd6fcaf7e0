package theme

import (
	"os"
	"strings"
)

// Status glyphs. InitSymbols swaps them for ASCII on terminals without UTF-8.
var (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "●"
	SymbolArrowR  = "→"
	SymbolBullet  = "•"
)

// SymbolSet holds one complete set of glyphs.
type SymbolSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	ArrowR  string
	Bullet  string
}

var unicodeSymbols = SymbolSet{
	Success: "\u2713",
	Error:   "\u2717",
	Warning: "\u26A0",
	Info:    "\u25CF",
	ArrowR:  "\u2192",
	Bullet:  "\u2022",
}

var asciiSymbols = SymbolSet{
	Success: "[OK]",
	Error:   "[ERR]",
	Warning: "[!]",
	Info:    "[i]",
	ArrowR:  "->",
	Bullet:  "*",
}

// DetectUnicodeSupport reports whether the terminal likely renders Unicode.
// IRONBANK_ASCII_SYMBOLS=1 forces ASCII.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("IRONBANK_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}
	return true
}

// InitSymbols picks the glyph set for the current environment.
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
}

func init() {
	InitSymbols()
}
