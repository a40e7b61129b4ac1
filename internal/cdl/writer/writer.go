// Package writer renders datasets as CDL text in the layout ncdump uses.
package writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

// Write renders ds to w. Parsing the output yields an equal dataset.
func Write(w io.Writer, ds *models.Dataset) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "netcdf %s {\n", escapeName(ds.Name))

	if len(ds.Dimensions) > 0 {
		bw.WriteString("dimensions:\n")
		for _, d := range ds.Dimensions {
			if d.Unlimited {
				fmt.Fprintf(bw, "\t%s = UNLIMITED ; // (%d currently)\n", escapeName(d.Name), d.Size)
				continue
			}
			fmt.Fprintf(bw, "\t%s = %d ;\n", escapeName(d.Name), d.Size)
		}
	}

	if len(ds.Variables) > 0 || len(ds.Attributes) > 0 {
		bw.WriteString("variables:\n")
	}
	for _, v := range ds.Variables {
		fmt.Fprintf(bw, "\t%s %s", v.Type, escapeName(v.Name))
		if len(v.Dimensions) > 0 {
			names := make([]string, len(v.Dimensions))
			for i, d := range v.Dimensions {
				names[i] = escapeName(d)
			}
			fmt.Fprintf(bw, "(%s)", strings.Join(names, ", "))
		}
		bw.WriteString(" ;\n")
		for _, a := range v.Attributes {
			fmt.Fprintf(bw, "\t\t%s%s:%s = %s ;\n", typePrefix(a), escapeName(v.Name), escapeName(a.Name), formatAttribute(a))
		}
	}

	if len(ds.Attributes) > 0 {
		bw.WriteString("\n// global attributes:\n")
		for _, a := range ds.Attributes {
			fmt.Fprintf(bw, "\t\t%s:%s = %s ;\n", typePrefix(a), escapeName(a.Name), formatAttribute(a))
		}
	}

	if ds.HasData() {
		bw.WriteString("data:\n")
		for _, v := range ds.Variables {
			if len(v.Data) == 0 {
				continue
			}
			fmt.Fprintf(bw, "\n %s = %s ;\n", escapeName(v.Name), formatData(v.Data))
		}
	}

	bw.WriteString("}\n")
	return bw.Flush()
}

// String renders ds and returns the text.
func String(ds *models.Dataset) string {
	var sb strings.Builder
	_ = Write(&sb, ds)
	return sb.String()
}

// typePrefix keeps types that literal suffixes cannot express explicit.
func typePrefix(a models.Attribute) string {
	if a.Type == models.String || hexSuffixClash(a) {
		return string(a.Type) + " "
	}
	return ""
}

// hexSuffixClash reports whether a suffix would read as another hex digit
// (0x10 followed by b, d or f).
func hexSuffixClash(a models.Attribute) bool {
	for _, v := range a.Values {
		if v.Kind != models.LiteralNumber || !isHex(v.Text) {
			continue
		}
		if sfx := suffix(a.Type, v.Text); sfx != "" && isHexDigit(sfx[0]) {
			return true
		}
	}
	return false
}

func formatAttribute(a models.Attribute) string {
	if hexSuffixClash(a) {
		return formatData(a.Values)
	}
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = formatLiteral(a.Type, v)
	}
	return strings.Join(parts, ", ")
}

func formatData(values []models.Literal) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch v.Kind {
		case models.LiteralString:
			parts[i] = quote(v.Text)
		case models.LiteralFill:
			parts[i] = "_"
		default:
			parts[i] = v.Text
		}
	}
	return strings.Join(parts, ", ")
}

func formatLiteral(dt models.DataType, v models.Literal) string {
	switch v.Kind {
	case models.LiteralString:
		return quote(v.Text)
	case models.LiteralFill:
		return "_"
	}
	return v.Text + suffix(dt, v.Text)
}

// suffix returns the literal suffix that makes the parser infer dt again.
func suffix(dt models.DataType, text string) string {
	switch dt {
	case models.Byte:
		return "b"
	case models.Short:
		return "s"
	case models.Int64:
		return "LL"
	case models.Float:
		return "f"
	case models.UByte:
		return "UB"
	case models.UShort:
		return "US"
	case models.UInt:
		return "U"
	case models.UInt64:
		return "ULL"
	case models.Double:
		if looksIntegral(text) {
			return "d"
		}
		return ""
	case models.Int:
		if looksIntegral(text) {
			return ""
		}
		return "L"
	}
	return ""
}

func isHex(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimLeft(text, "+-")), "0x")
}

func isHexDigit(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func looksIntegral(text string) bool {
	lower := strings.ToLower(strings.TrimLeft(text, "+-"))
	if isHex(lower) {
		return true
	}
	return !strings.ContainsAny(lower, ".e") && !strings.HasPrefix(lower, "nan") && !strings.HasPrefix(lower, "inf")
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func escapeName(name string) string {
	var sb strings.Builder
	for i, r := range name {
		special := strings.ContainsRune(" ,;:=(){}\"\\/", r)
		if i == 0 && (r >= '0' && r <= '9' || r == '-' || r == '+' || r == '.') {
			special = true
		}
		if special {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
