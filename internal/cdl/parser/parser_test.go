package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cfcheck-fixtures/internal/common/logger"
	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

func parse(t *testing.T, src string) (*models.Dataset, error) {
	t.Helper()
	return New(logger.Nop()).ParseDataset(context.Background(), strings.NewReader(src))
}

func mustParse(t *testing.T, src string) *models.Dataset {
	t.Helper()
	ds, err := parse(t, src)
	if err != nil {
		t.Fatalf("ParseDataset: %v", err)
	}
	return ds
}

func TestParseBasicDataset(t *testing.T) {
	src := `netcdf basic {
dimensions:
	time = UNLIMITED ; // (3 currently)
	station = 2 ;
variables:
	double time(time) ;
		time:units = "seconds since 1970-01-01" ;
	float temp(time, station), salt(time, station) ;
		temp:valid_range = 0.f, 40.f ;
		temp:_FillValue = -999.f ;
	int crs ;
	:Conventions = "CF-1.6" ;
data:
 time = 0, 60, 120 ;
 temp = 1, 2, 3, 4, 5, _ ;
}`
	ds := mustParse(t, src)

	want := &models.Dataset{
		Name: "basic",
		Dimensions: []models.Dimension{
			{Name: "time", Size: 3, Unlimited: true},
			{Name: "station", Size: 2},
		},
		Variables: []*models.Variable{
			{
				Name: "time", Type: models.Double, Dimensions: []string{"time"},
				Attributes: []models.Attribute{
					{Name: "units", Type: models.Char, Values: []models.Literal{models.Str("seconds since 1970-01-01")}},
				},
				Data: []models.Literal{models.Number("0"), models.Number("60"), models.Number("120")},
			},
			{
				Name: "temp", Type: models.Float, Dimensions: []string{"time", "station"},
				Attributes: []models.Attribute{
					{Name: "valid_range", Type: models.Float, Values: []models.Literal{models.Number("0."), models.Number("40.")}},
					{Name: "_FillValue", Type: models.Float, Values: []models.Literal{models.Number("-999.")}},
				},
				Data: []models.Literal{
					models.Number("1"), models.Number("2"), models.Number("3"),
					models.Number("4"), models.Number("5"), models.Fill(),
				},
			},
			{Name: "salt", Type: models.Float, Dimensions: []string{"time", "station"}},
			{Name: "crs", Type: models.Int, Dimensions: []string{}},
		},
		Attributes: []models.Attribute{
			{Name: "Conventions", Type: models.Char, Values: []models.Literal{models.Str("CF-1.6")}},
		},
	}

	if diff := cmp.Diff(want, ds); diff != "" {
		t.Errorf("dataset mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributeTypes(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  models.DataType
	}{
		{"byte", "1b", models.Byte},
		{"short", "1s", models.Short},
		{"int", "1", models.Int},
		{"int suffix", "1L", models.Int},
		{"int64", "1LL", models.Int64},
		{"float", "1.5f", models.Float},
		{"double", "1.5", models.Double},
		{"double suffix", "1d", models.Double},
		{"exponent", "1e-3", models.Double},
		{"ubyte", "1UB", models.UByte},
		{"ushort", "1us", models.UShort},
		{"uint", "1u", models.UInt},
		{"uint64", "1ull", models.UInt64},
		{"hex", "0x1F", models.Int},
		{"nan float", "NaNf", models.Float},
		{"negative infinity", "-Infinity", models.Double},
		{"mixed promotes", "1b, 2.5f", models.Double},
		{"string", `"abc"`, models.Char},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := mustParse(t, "netcdf t {\nvariables:\n\tint v ;\n\t\tv:a = "+tt.value+" ;\n}")
			v, _ := ds.Variable("v")
			a, ok := v.Attribute("a")
			if !ok {
				t.Fatal("attribute missing")
			}
			if a.Type != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, a.Type)
			}
		})
	}
}

func TestTypedAttribute(t *testing.T) {
	ds := mustParse(t, `netcdf t {
variables:
	int v ;
	double v:scale = 2 ;
	string :history = "created" ;
}`)
	v, _ := ds.Variable("v")
	a, _ := v.Attribute("scale")
	if a.Type != models.Double {
		t.Errorf("Expected explicit double, got %s", a.Type)
	}
	h, _ := ds.Attribute("history")
	if h.Type != models.String || h.String() != "created" {
		t.Errorf("Expected string history, got %s %q", h.Type, h.String())
	}
}

func TestKeywordLikeVariableNames(t *testing.T) {
	ds := mustParse(t, `netcdf t {
variables:
	float Float ;
		Float:units = "m" ;
	byte Byte, LONG ;
		Byte:long_name = "flag" ;
		LONG:units = "degrees_east" ;
	:title = "keywords" ;
}`)

	for name, want := range map[string][2]string{
		"Float": {"units", "m"},
		"Byte":  {"long_name", "flag"},
		"LONG":  {"units", "degrees_east"},
	} {
		v, ok := ds.Variable(name)
		if !ok {
			t.Fatalf("Expected variable %s", name)
		}
		a, ok := v.Attribute(want[0])
		if !ok || a.String() != want[1] {
			t.Errorf("%s:%s = %q, want %q", name, want[0], a.String(), want[1])
		}
	}
	if len(ds.Attributes) != 1 {
		t.Errorf("Expected only the title global attribute, got %d", len(ds.Attributes))
	}
}

func TestParseDataTypeCase(t *testing.T) {
	tests := []struct {
		keyword string
		want    models.DataType
		ok      bool
	}{
		{"float", models.Float, true},
		{"FLOAT", models.Float, true},
		{"long", models.Int, true},
		{"Float", "", false},
		{"Long", "", false},
		{"uInt", "", false},
	}
	for _, tt := range tests {
		got, ok := models.ParseDataType(tt.keyword)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDataType(%q) = %q, %v; want %q, %v", tt.keyword, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	ds := mustParse(t, `netcdf t {
variables:
	:comment = "line one\nsays \"hi\"" ;
}`)
	a, _ := ds.Attribute("comment")
	if got, want := a.String(), "line one\nsays \"hi\""; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "duplicate dimension",
			src:  "netcdf t {\ndimensions:\n\tx = 1 ;\n\tx = 2 ;\n}",
			want: ErrDuplicateName,
		},
		{
			name: "two unlimited",
			src:  "netcdf t {\ndimensions:\n\ta = UNLIMITED ;\n\tb = unlimited ;\n}",
			want: ErrMultipleUnlimited,
		},
		{
			name: "zero size",
			src:  "netcdf t {\ndimensions:\n\tx = 0 ;\n}",
			want: ErrInvalidSize,
		},
		{
			name: "undefined dimension",
			src:  "netcdf t {\nvariables:\n\tfloat v(x) ;\n}",
			want: ErrUndefinedDimension,
		},
		{
			name: "duplicate variable",
			src:  "netcdf t {\nvariables:\n\tint v ;\n\tint v ;\n}",
			want: ErrDuplicateName,
		},
		{
			name: "attribute on undefined variable",
			src:  "netcdf t {\nvariables:\n\tq:units = \"m\" ;\n}",
			want: ErrUndefinedVariable,
		},
		{
			name: "duplicate attribute",
			src:  "netcdf t {\nvariables:\n\tint v ;\n\t\tv:a = 1 ;\n\t\tv:a = 2 ;\n}",
			want: ErrDuplicateName,
		},
		{
			name: "mixed values",
			src:  "netcdf t {\nvariables:\n\t:a = 1, \"x\" ;\n}",
			want: ErrMixedTypes,
		},
		{
			name: "data for undefined variable",
			src:  "netcdf t {\ndata:\n q = 1 ;\n}",
			want: ErrUndefinedVariable,
		},
		{
			name: "data count mismatch",
			src:  "netcdf t {\ndimensions:\n\tx = 3 ;\nvariables:\n\tint v(x) ;\ndata:\n v = 1, 2 ;\n}",
			want: ErrDataShape,
		},
		{
			name: "unlimited data not a multiple",
			src:  "netcdf t {\ndimensions:\n\tt = UNLIMITED ;\n\tx = 2 ;\nvariables:\n\tint v(t, x) ;\ndata:\n v = 1, 2, 3 ;\n}",
			want: ErrDataShape,
		},
		{
			name: "string data for numeric variable",
			src:  "netcdf t {\nvariables:\n\tint v ;\ndata:\n v = \"a\" ;\n}",
			want: ErrMixedTypes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.src)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := parse(t, "netcdf t {\ndimensions:\n\tx 3 ;\n}")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *SyntaxError, got %v", err)
	}
	if se.Line != 3 || se.Column != 4 {
		t.Errorf("Expected error at 3:4, got %d:%d (%s)", se.Line, se.Column, se.Msg)
	}
}

func TestSyntaxErrors(t *testing.T) {
	srcs := map[string]string{
		"missing header":     "dimensions: x = 1 ;",
		"missing brace":      "netcdf t dimensions:",
		"unterminated":       "netcdf t {\nvariables:\n\t:a = \"x ;\n}",
		"bad suffix":         "netcdf t {\nvariables:\n\t:a = 1q ;\n}",
		"group section":      "netcdf t {\ngroup: g {\n}\n}",
		"trailing tokens":    "netcdf t {\n}\nextra",
		"missing semicolon":  "netcdf t {\ndimensions:\n\tx = 1\n}",
		"unknown section":    "netcdf t {\nstuff:\n}",
		"unclosed dataset":   "netcdf t {\ndimensions:\n\tx = 1 ;\n",
		"single slash":       "netcdf t { / }",
	}
	for name, src := range srcs {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, src)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Errorf("Expected *SyntaxError, got %v", err)
			}
		})
	}
}

func TestCallbacksOrder(t *testing.T) {
	src := `netcdf cb {
dimensions:
	x = 2 ;
variables:
	int v(x) ;
		v:units = "1" ;
	:title = "t" ;
data:
 v = 1, 2 ;
}`
	var events []string
	callbacks := ParseCallbacks{
		OnDimension: func(d models.Dimension) error {
			events = append(events, "dim:"+d.Name)
			return nil
		},
		OnVariable: func(v *models.Variable) error {
			events = append(events, "var:"+v.Name)
			return nil
		},
		OnAttribute: func(variable string, a models.Attribute) error {
			events = append(events, "att:"+variable+":"+a.Name)
			return nil
		},
		OnData: func(variable string, values []models.Literal) error {
			events = append(events, "data:"+variable)
			return nil
		},
		OnComplete: func(name string) error {
			events = append(events, "done:"+name)
			return nil
		},
	}

	if err := New(logger.Nop()).Parse(context.Background(), strings.NewReader(src), callbacks); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"dim:x", "var:v", "att:v:units", "att::title", "data:v", "done:cb"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCallbackErrorAborts(t *testing.T) {
	stop := errors.New("stop")
	callbacks := ParseCallbacks{
		OnDimension: func(models.Dimension) error { return stop },
	}
	err := New(logger.Nop()).Parse(context.Background(), strings.NewReader("netcdf t {\ndimensions:\n\tx = 1 ;\n}"), callbacks)
	if !errors.Is(err, stop) {
		t.Errorf("Expected callback error, got %v", err)
	}
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(logger.Nop()).ParseDataset(ctx, strings.NewReader("netcdf t {\ndimensions:\n\tx = 1 ;\n}"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCharDataSkipsShapeCheck(t *testing.T) {
	ds := mustParse(t, `netcdf t {
dimensions:
	n = 2 ;
	len = 8 ;
variables:
	char name(n, len) ;
data:
 name = "alpha", "beta" ;
}`)
	v, _ := ds.Variable("name")
	if len(v.Data) != 2 {
		t.Errorf("Expected 2 strings, got %d", len(v.Data))
	}
}
