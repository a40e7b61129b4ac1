package models

import (
	"fmt"
	"strconv"
	"strings"
)

type DataType string

const (
	Char   DataType = "char"
	Byte   DataType = "byte"
	Short  DataType = "short"
	Int    DataType = "int"
	Float  DataType = "float"
	Double DataType = "double"
	UByte  DataType = "ubyte"
	UShort DataType = "ushort"
	UInt   DataType = "uint"
	Int64  DataType = "int64"
	UInt64 DataType = "uint64"
	String DataType = "string"
)

// ParseDataType maps a CDL type keyword to its DataType, including the
// legacy aliases "real" and "long". Keywords are lower case; the all upper
// case forms ncgen also accepts (FLOAT, LONG) are recognized too, but mixed
// case names such as Float are plain identifiers.
func ParseDataType(keyword string) (DataType, bool) {
	lower := strings.ToLower(keyword)
	if keyword != lower && keyword != strings.ToUpper(keyword) {
		return "", false
	}
	switch lower {
	case "char":
		return Char, true
	case "byte":
		return Byte, true
	case "short":
		return Short, true
	case "int", "long", "integer":
		return Int, true
	case "float", "real":
		return Float, true
	case "double":
		return Double, true
	case "ubyte":
		return UByte, true
	case "ushort":
		return UShort, true
	case "uint":
		return UInt, true
	case "int64":
		return Int64, true
	case "uint64":
		return UInt64, true
	case "string":
		return String, true
	}
	return "", false
}

// Classic reports whether the type belongs to the NetCDF Classic model.
func (t DataType) Classic() bool {
	switch t {
	case Char, Byte, Short, Int, Float, Double:
		return true
	}
	return false
}

func (t DataType) Numeric() bool {
	return t != Char && t != String && t != ""
}

type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralFill
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralNumber:
		return "number"
	case LiteralString:
		return "string"
	case LiteralFill:
		return "fill"
	}
	return fmt.Sprintf("LiteralKind(%d)", int(k))
}

// Literal is a single value as written in CDL. Numbers keep their text
// without the type suffix so they survive a round trip unchanged.
type Literal struct {
	Kind LiteralKind `json:"kind"`
	Text string      `json:"text"`
}

func Number(text string) Literal { return Literal{Kind: LiteralNumber, Text: text} }
func Str(text string) Literal    { return Literal{Kind: LiteralString, Text: text} }
func Fill() Literal              { return Literal{Kind: LiteralFill, Text: "_"} }

type Dimension struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Unlimited bool   `json:"unlimited,omitempty"`
}

type Attribute struct {
	Name   string    `json:"name"`
	Type   DataType  `json:"type"`
	Values []Literal `json:"values"`
}

// String joins the string values of a text attribute.
func (a Attribute) String() string {
	var sb strings.Builder
	for _, v := range a.Values {
		if v.Kind == LiteralString {
			sb.WriteString(v.Text)
		}
	}
	return sb.String()
}

func (a Attribute) Float64s() ([]float64, error) {
	out := make([]float64, 0, len(a.Values))
	for _, v := range a.Values {
		if v.Kind != LiteralNumber {
			return nil, fmt.Errorf("attribute %s: value %q is not numeric", a.Name, v.Text)
		}
		f, err := ParseNumber(v.Text)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseNumber converts the text of a numeric literal, accepting hex
// integers and the CDL spellings of NaN and infinity.
func ParseNumber(text string) (float64, error) {
	switch strings.TrimLeft(text, "+") {
	case "NaN", "nan":
		return strconv.ParseFloat("NaN", 64)
	case "Infinity", "inf", "Inf":
		return strconv.ParseFloat("+Inf", 64)
	case "-Infinity", "-inf", "-Inf":
		return strconv.ParseFloat("-Inf", 64)
	}
	lower := strings.ToLower(strings.TrimLeft(text, "+-"))
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing number %q: %w", text, err)
		}
		return float64(n), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing number %q: %w", text, err)
	}
	return f, nil
}

type Variable struct {
	Name       string      `json:"name"`
	Type       DataType    `json:"type"`
	Dimensions []string    `json:"dimensions"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Data       []Literal   `json:"data,omitempty"`
}

func (v *Variable) Attribute(name string) (Attribute, bool) {
	for _, a := range v.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// StringAttribute returns the text of the named attribute, or "" when it is
// absent or not a text attribute.
func (v *Variable) StringAttribute(name string) string {
	a, ok := v.Attribute(name)
	if !ok {
		return ""
	}
	return a.String()
}

func (v *Variable) HasDimension(name string) bool {
	for _, d := range v.Dimensions {
		if d == name {
			return true
		}
	}
	return false
}

// Dataset is the in-memory form of one CDL file.
type Dataset struct {
	Name       string      `json:"name"`
	Dimensions []Dimension `json:"dimensions"`
	Variables  []*Variable `json:"variables"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

func (d *Dataset) Dimension(name string) (Dimension, bool) {
	for _, dim := range d.Dimensions {
		if dim.Name == name {
			return dim, true
		}
	}
	return Dimension{}, false
}

func (d *Dataset) Variable(name string) (*Variable, bool) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

func (d *Dataset) Attribute(name string) (Attribute, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// IsCoordinateVariable reports whether v is one-dimensional and named after
// its own dimension.
func (d *Dataset) IsCoordinateVariable(v *Variable) bool {
	return v != nil && len(v.Dimensions) == 1 && v.Dimensions[0] == v.Name
}

// Shape returns the declared dimension sizes of v. Unknown dimensions
// report size 0.
func (d *Dataset) Shape(v *Variable) []int {
	shape := make([]int, 0, len(v.Dimensions))
	for _, name := range v.Dimensions {
		dim, _ := d.Dimension(name)
		shape = append(shape, dim.Size)
	}
	return shape
}

func (d *Dataset) HasData() bool {
	for _, v := range d.Variables {
		if len(v.Data) > 0 {
			return true
		}
	}
	return false
}
