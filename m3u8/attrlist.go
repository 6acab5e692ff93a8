package m3u8

/*
 This file defines the attribute list of a tag and its typed accessors.
*/

import (
	"encoding/hex"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reAttribute = regexp.MustCompile(`\s*(.+?)\s*=((?:".*?")|.*?)(?:,|$)`)
var reResolution = regexp.MustCompile(`^(\d+)x(\d+)$`)

// AttributeList holds the KEY=VALUE pairs of a tag, with quotes stripped
// from quoted-string values. It is not modified after ParseAttributeList.
type AttributeList map[string]string

// Resolution is a decimal-resolution attribute value.
type Resolution struct {
	Width  int
	Height int
}

// ParseAttributeList decodes the attributes following the colon of a tag.
func ParseAttributeList(s string) AttributeList {
	attrs := make(AttributeList)
	for _, kv := range reAttribute.FindAllStringSubmatch(s, -1) {
		attrs[kv[1]] = DeQuote(kv[2])
	}
	return attrs
}

// Has reports whether the attribute is present.
func (a AttributeList) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// DecimalInteger returns a decimal-integer attribute. Values larger than
// the int64 range saturate at math.MaxInt64.
func (a AttributeList) DecimalInteger(name string) (int64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && n > 0 {
			return math.MaxInt64, true
		}
		return 0, false
	}
	return n, true
}

// HexadecimalInteger returns the bytes of a hexadecimal-sequence attribute
// such as IV=0x0102. An odd number of digits is left-padded with a zero.
func (a AttributeList) HexadecimalInteger(name string) []byte {
	v, ok := a[name]
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if len(v) > 1 && v[0] == '0' && (v[1] == 'x' || v[1] == 'X') {
		v = v[2:]
	}
	if len(v)%2 != 0 {
		v = "0" + v
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil
	}
	return b
}

// HexadecimalIntegerAsNumber returns a hexadecimal-sequence attribute as a
// number. Values wider than 64 bits saturate at math.MaxUint64.
func (a AttributeList) HexadecimalIntegerAsNumber(name string) (uint64, bool) {
	b := a.HexadecimalInteger(name)
	if b == nil {
		return 0, false
	}
	if len(b) > 8 {
		return math.MaxUint64, true
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, true
}

// DecimalFloatingPoint returns a decimal-floating-point attribute.
func (a AttributeList) DecimalFloatingPoint(name string) (float64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// OptionalFloat returns a floating point attribute or def when it is
// absent or malformed.
func (a AttributeList) OptionalFloat(name string, def float64) float64 {
	if f, ok := a.DecimalFloatingPoint(name); ok {
		return f
	}
	return def
}

// EnumeratedString returns the attribute value as written.
func (a AttributeList) EnumeratedString(name string) string {
	return a[name]
}

// Bool reports whether an enumerated-string attribute equals YES.
func (a AttributeList) Bool(name string) bool {
	return a[name] == "YES"
}

// DecimalResolution returns a WIDTHxHEIGHT attribute.
func (a AttributeList) DecimalResolution(name string) (Resolution, bool) {
	m := reResolution.FindStringSubmatch(strings.TrimSpace(a[name]))
	if m == nil {
		return Resolution{}, false
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return Resolution{}, false
	}
	h, err := strconv.Atoi(m[2])
	if err != nil {
		return Resolution{}, false
	}
	return Resolution{Width: w, Height: h}, true
}
