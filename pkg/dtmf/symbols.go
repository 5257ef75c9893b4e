package dtmf

import (
	"fmt"
	"strings"
)

// Row (low group) and column (high group) tone frequencies in Hz.
const (
	Row1 = 697
	Row2 = 770
	Row3 = 852
	Row4 = 941

	Col1 = 1209
	Col2 = 1336
	Col3 = 1477
	Col4 = 1633
)

// SymbolPair is one alphabet symbol together with the low-group and
// high-group tone it is rendered as.
type SymbolPair struct {
	Symbol byte
	Low    int
	High   int
}

func (p SymbolPair) String() string {
	return string(p.Symbol)
}

// Alphabet lists every symbol the table knows about. 'e' and 'f' are aliases
// of '*' and '#' so that a nibble can always be named by its hex digit.
const Alphabet = "0123456789abcd*#ef"

var frequencies = map[byte][2]int{
	'0': {Row4, Col2},
	'1': {Row1, Col1},
	'2': {Row1, Col2},
	'3': {Row1, Col3},
	'4': {Row2, Col1},
	'5': {Row2, Col2},
	'6': {Row2, Col3},
	'7': {Row3, Col1},
	'8': {Row3, Col2},
	'9': {Row3, Col3},
	'a': {Row1, Col4},
	'b': {Row2, Col4},
	'c': {Row3, Col4},
	'd': {Row4, Col4},
	'*': {Row4, Col1},
	'#': {Row4, Col3},
	'e': {Row4, Col1},
	'f': {Row4, Col3},
}

const hexDigits = "0123456789abcdef"

// Lookup returns the tone pair for symbol. Upper case letters are accepted.
func Lookup(symbol byte) (SymbolPair, bool) {
	symbol = lower(symbol)
	f, ok := frequencies[symbol]
	if !ok {
		return SymbolPair{}, false
	}
	return SymbolPair{Symbol: symbol, Low: f[0], High: f[1]}, true
}

// NibbleToSymbolPair maps the low four bits of n to the symbol named by its
// hex digit.
func NibbleToSymbolPair(n byte) SymbolPair {
	p, _ := Lookup(hexDigits[n&0xf])
	return p
}

// SymbolToNibble is the inverse of NibbleToSymbolPair. '*' and '#' decode to
// the same nibbles as their 'e' and 'f' aliases.
func SymbolToNibble(symbol byte) (byte, bool) {
	switch symbol = lower(symbol); symbol {
	case '*':
		return 0xe, true
	case '#':
		return 0xf, true
	}
	idx := strings.IndexByte(hexDigits, symbol)
	if idx < 0 {
		return 0, false
	}
	return byte(idx), true
}

// ByteToSymbolPairs returns the pairs for the high nibble and the low nibble
// of b, in emission order.
func ByteToSymbolPairs(b byte) (SymbolPair, SymbolPair) {
	return NibbleToSymbolPair(b >> 4), NibbleToSymbolPair(b & 0xf)
}

func FromBytes(data []byte) []SymbolPair {
	ret := make([]SymbolPair, 0, 2*len(data))
	for _, b := range data {
		hi, lo := ByteToSymbolPairs(b)
		ret = append(ret, hi, lo)
	}
	return ret
}

// ToBytes joins consecutive pairs back into bytes, high nibble first.
func ToBytes(pairs []SymbolPair) ([]byte, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("odd number of symbols: %d", len(pairs))
	}
	ret := make([]byte, len(pairs)/2)
	for i := 0; i < len(ret); i++ {
		hi, ok := SymbolToNibble(pairs[2*i].Symbol)
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q at position %d", pairs[2*i].Symbol, 2*i)
		}
		lo, ok := SymbolToNibble(pairs[2*i+1].Symbol)
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q at position %d", pairs[2*i+1].Symbol, 2*i+1)
		}
		ret[i] = hi<<4 | lo
	}
	return ret, nil
}

// ParseSymbols converts a string of symbols, as reported by a tone detector,
// into bytes. Whitespace is ignored.
func ParseSymbols(s string) ([]byte, error) {
	pairs := make([]SymbolPair, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		}
		p, ok := Lookup(s[i])
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q at offset %d", s[i], i)
		}
		pairs = append(pairs, p)
	}
	return ToBytes(pairs)
}

// String renders the symbol identifiers of pairs.
func String(pairs []SymbolPair) string {
	var sb strings.Builder
	sb.Grow(len(pairs))
	for _, p := range pairs {
		sb.WriteByte(p.Symbol)
	}
	return sb.String()
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
