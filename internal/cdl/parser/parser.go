package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cfcheck-fixtures/internal/common/logger"
	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

type Parser struct {
	logger logger.Logger
}

func New(logger logger.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseCallbacks receive declarations in source order. Variables are
// delivered before their attributes; OnComplete runs after the whole
// dataset has been validated.
type ParseCallbacks struct {
	OnDimension func(dim models.Dimension) error
	OnVariable  func(v *models.Variable) error
	OnAttribute func(variable string, attr models.Attribute) error
	OnData      func(variable string, values []models.Literal) error
	OnComplete  func(name string) error
}

func (p *Parser) Parse(ctx context.Context, r io.Reader, callbacks ParseCallbacks) error {
	_, err := p.parse(ctx, r, callbacks)
	return err
}

func (p *Parser) ParseDataset(ctx context.Context, r io.Reader) (*models.Dataset, error) {
	return p.parse(ctx, r, ParseCallbacks{})
}

func (p *Parser) ParseFile(ctx context.Context, path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cdl file: %w", err)
	}
	defer f.Close()

	ds, err := p.ParseDataset(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return ds, nil
}

func (p *Parser) parse(ctx context.Context, r io.Reader, callbacks ParseCallbacks) (*models.Dataset, error) {
	st := &state{
		lex:       newLexer(r),
		callbacks: callbacks,
		ds:        &models.Dataset{},
		dataAt:    make(map[string]token),
	}

	if err := st.parseHeader(); err != nil {
		return nil, err
	}
	p.logger.Debug("Parsing CDL dataset", "name", st.ds.Name)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tok, err := st.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.kind == tokRBrace {
			st.next()
			break
		}
		if tok.kind != tokIdent {
			return nil, st.unexpected(tok, "section name")
		}
		colon, err := st.peek(1)
		if err != nil {
			return nil, err
		}
		if colon.kind != tokColon {
			return nil, st.unexpected(colon, "':'")
		}

		switch tok.text {
		case "dimensions":
			st.skip(2)
			err = st.parseDimensions(ctx)
		case "variables":
			st.skip(2)
			err = st.parseVariables(ctx)
		case "data":
			st.skip(2)
			err = st.parseData(ctx)
		case "types", "group":
			err = &SyntaxError{Line: tok.line, Column: tok.col, Msg: fmt.Sprintf("%q sections are not part of the classic model", tok.text)}
		default:
			err = st.unexpected(tok, "dimensions:, variables: or data:")
		}
		if err != nil {
			return nil, err
		}
	}

	trailing, err := st.next()
	if err != nil {
		return nil, err
	}
	if trailing.kind != tokEOF {
		return nil, st.unexpected(trailing, "end of input")
	}

	if err := st.checkData(); err != nil {
		return nil, err
	}

	if callbacks.OnComplete != nil {
		if err := callbacks.OnComplete(st.ds.Name); err != nil {
			return nil, fmt.Errorf("complete callback: %w", err)
		}
	}

	p.logger.Debug("CDL dataset parsed",
		"name", st.ds.Name,
		"dimensions", len(st.ds.Dimensions),
		"variables", len(st.ds.Variables),
		"global_attributes", len(st.ds.Attributes))

	return st.ds, nil
}

type state struct {
	lex       *lexer
	buf       []token
	callbacks ParseCallbacks
	ds        *models.Dataset
	// dataAt remembers where each variable's data statement began.
	dataAt map[string]token
}

func (s *state) peek(n int) (token, error) {
	for len(s.buf) <= n {
		tok, err := s.lex.scan()
		if err != nil {
			return token{}, err
		}
		s.buf = append(s.buf, tok)
		if tok.kind == tokEOF {
			break
		}
	}
	if n >= len(s.buf) {
		return s.buf[len(s.buf)-1], nil
	}
	return s.buf[n], nil
}

func (s *state) next() (token, error) {
	tok, err := s.peek(0)
	if err != nil {
		return token{}, err
	}
	if tok.kind != tokEOF {
		s.buf = s.buf[1:]
	}
	return tok, nil
}

func (s *state) skip(n int) {
	for i := 0; i < n; i++ {
		s.next()
	}
}

func (s *state) expect(kind tokenKind) (token, error) {
	tok, err := s.next()
	if err != nil {
		return token{}, err
	}
	if tok.kind != kind {
		return token{}, s.unexpected(tok, kind.String())
	}
	return tok, nil
}

func (s *state) unexpected(tok token, want string) error {
	got := tok.kind.String()
	if tok.text != "" {
		got = fmt.Sprintf("%s %q", got, tok.text)
	}
	return &SyntaxError{Line: tok.line, Column: tok.col, Msg: fmt.Sprintf("expected %s, found %s", want, got)}
}

// atSection reports whether the next tokens open another section or close
// the dataset.
func (s *state) atSection() (bool, error) {
	tok, err := s.peek(0)
	if err != nil {
		return false, err
	}
	if tok.kind == tokRBrace || tok.kind == tokEOF {
		return true, nil
	}
	if tok.kind != tokIdent {
		return false, nil
	}
	switch tok.text {
	case "dimensions", "variables", "data", "types", "group":
	default:
		return false, nil
	}
	colon, err := s.peek(1)
	if err != nil {
		return false, err
	}
	return colon.kind == tokColon, nil
}

func (s *state) parseHeader() error {
	kw, err := s.expect(tokIdent)
	if err != nil {
		return err
	}
	if kw.text != "netcdf" {
		return s.unexpected(kw, `"netcdf"`)
	}
	name, err := s.next()
	if err != nil {
		return err
	}
	switch name.kind {
	case tokIdent, tokString:
		s.ds.Name = name.text
	case tokNumber:
		s.ds.Name = name.text + name.suffix
	default:
		return s.unexpected(name, "dataset name")
	}
	_, err = s.expect(tokLBrace)
	return err
}

func (s *state) parseDimensions(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.atSection()
		if err != nil || done {
			return err
		}

		for {
			if err := s.parseDimension(); err != nil {
				return err
			}
			sep, err := s.next()
			if err != nil {
				return err
			}
			if sep.kind == tokSemicolon {
				break
			}
			if sep.kind != tokComma {
				return s.unexpected(sep, "',' or ';'")
			}
		}
	}
}

func (s *state) parseDimension() error {
	name, err := s.expect(tokIdent)
	if err != nil {
		return err
	}
	if _, err := s.expect(tokEquals); err != nil {
		return err
	}
	size, err := s.next()
	if err != nil {
		return err
	}

	dim := models.Dimension{Name: name.text}
	switch {
	case size.kind == tokIdent && strings.EqualFold(size.text, "unlimited"):
		for _, d := range s.ds.Dimensions {
			if d.Unlimited {
				return semanticError(size, ErrMultipleUnlimited, "dimension %s", name.text)
			}
		}
		dim.Unlimited = true
	case size.kind == tokNumber:
		n, err := strconv.Atoi(size.text)
		if err != nil || n <= 0 {
			return semanticError(size, ErrInvalidSize, "dimension %s = %s", name.text, size.text)
		}
		dim.Size = n
	default:
		return s.unexpected(size, "dimension size or UNLIMITED")
	}

	if _, ok := s.ds.Dimension(dim.Name); ok {
		return semanticError(name, ErrDuplicateName, "dimension %s", dim.Name)
	}
	s.ds.Dimensions = append(s.ds.Dimensions, dim)

	if s.callbacks.OnDimension != nil {
		if err := s.callbacks.OnDimension(dim); err != nil {
			return err
		}
	}
	return nil
}

func (s *state) parseVariables(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.atSection()
		if err != nil || done {
			return err
		}

		first, err := s.peek(0)
		if err != nil {
			return err
		}

		var explicit models.DataType
		if first.kind == tokIdent {
			if dt, ok := models.ParseDataType(first.text); ok {
				second, err := s.peek(1)
				if err != nil {
					return err
				}
				third, err := s.peek(2)
				if err != nil {
					return err
				}
				if second.kind == tokColon {
					if _, declared := s.ds.Variable(first.text); declared {
						// an attribute of a variable whose name is also a keyword
						if err := s.parseAttribute(""); err != nil {
							return err
						}
						continue
					}
				}
				isAttr := second.kind == tokColon || (second.kind == tokIdent && third.kind == tokColon)
				if !isAttr {
					if err := s.parseVariableDecl(dt); err != nil {
						return err
					}
					continue
				}
				explicit = dt
				s.next()
			}
		}

		if err := s.parseAttribute(explicit); err != nil {
			return err
		}
	}
}

func (s *state) parseVariableDecl(dt models.DataType) error {
	s.next()
	for {
		name, err := s.expect(tokIdent)
		if err != nil {
			return err
		}
		v := &models.Variable{Name: name.text, Type: dt, Dimensions: []string{}}

		tok, err := s.next()
		if err != nil {
			return err
		}
		if tok.kind == tokLParen {
			for {
				dimTok, err := s.expect(tokIdent)
				if err != nil {
					return err
				}
				if _, ok := s.ds.Dimension(dimTok.text); !ok {
					return semanticError(dimTok, ErrUndefinedDimension, "variable %s uses %s", v.Name, dimTok.text)
				}
				v.Dimensions = append(v.Dimensions, dimTok.text)

				sep, err := s.next()
				if err != nil {
					return err
				}
				if sep.kind == tokRParen {
					break
				}
				if sep.kind != tokComma {
					return s.unexpected(sep, "',' or ')'")
				}
			}
			if tok, err = s.next(); err != nil {
				return err
			}
		}

		if _, ok := s.ds.Variable(v.Name); ok {
			return semanticError(name, ErrDuplicateName, "variable %s", v.Name)
		}
		s.ds.Variables = append(s.ds.Variables, v)
		if s.callbacks.OnVariable != nil {
			if err := s.callbacks.OnVariable(v); err != nil {
				return err
			}
		}

		switch tok.kind {
		case tokSemicolon:
			return nil
		case tokComma:
			continue
		default:
			return s.unexpected(tok, "',' or ';'")
		}
	}
}

func (s *state) parseAttribute(explicit models.DataType) error {
	var target *models.Variable
	head, err := s.next()
	if err != nil {
		return err
	}
	switch head.kind {
	case tokColon:
	case tokIdent:
		v, ok := s.ds.Variable(head.text)
		if !ok {
			return semanticError(head, ErrUndefinedVariable, "attribute target %s", head.text)
		}
		target = v
		if _, err := s.expect(tokColon); err != nil {
			return err
		}
	default:
		return s.unexpected(head, "variable declaration or attribute")
	}

	name, err := s.expect(tokIdent)
	if err != nil {
		return err
	}
	if _, err := s.expect(tokEquals); err != nil {
		return err
	}

	values, suffixes, err := s.parseValues(false)
	if err != nil {
		return err
	}
	dt, err := attributeType(values, suffixes, explicit)
	if err != nil {
		return semanticError(name, err, "attribute %s", name.text)
	}
	attr := models.Attribute{Name: name.text, Type: dt, Values: values}

	owner := ""
	if target == nil {
		if _, ok := s.ds.Attribute(attr.Name); ok {
			return semanticError(name, ErrDuplicateName, "global attribute %s", attr.Name)
		}
		s.ds.Attributes = append(s.ds.Attributes, attr)
	} else {
		if _, ok := target.Attribute(attr.Name); ok {
			return semanticError(name, ErrDuplicateName, "attribute %s:%s", target.Name, attr.Name)
		}
		target.Attributes = append(target.Attributes, attr)
		owner = target.Name
	}

	if s.callbacks.OnAttribute != nil {
		if err := s.callbacks.OnAttribute(owner, attr); err != nil {
			return err
		}
	}
	return nil
}

// parseValues reads a comma separated literal list up to and including the
// terminating semicolon.
func (s *state) parseValues(allowFill bool) ([]models.Literal, []string, error) {
	var (
		values   []models.Literal
		suffixes []string
	)
	for {
		tok, err := s.next()
		if err != nil {
			return nil, nil, err
		}
		switch {
		case tok.kind == tokString:
			values = append(values, models.Str(tok.text))
			suffixes = append(suffixes, "")
		case tok.kind == tokNumber:
			values = append(values, models.Number(tok.text))
			suffixes = append(suffixes, tok.suffix)
		case allowFill && tok.kind == tokIdent && tok.text == "_":
			values = append(values, models.Fill())
			suffixes = append(suffixes, "")
		default:
			return nil, nil, s.unexpected(tok, "value")
		}

		sep, err := s.next()
		if err != nil {
			return nil, nil, err
		}
		if sep.kind == tokSemicolon {
			return values, suffixes, nil
		}
		if sep.kind != tokComma {
			return nil, nil, s.unexpected(sep, "',' or ';'")
		}
	}
}

func (s *state) parseData(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.atSection()
		if err != nil || done {
			return err
		}

		name, err := s.expect(tokIdent)
		if err != nil {
			return err
		}
		v, ok := s.ds.Variable(name.text)
		if !ok {
			return semanticError(name, ErrUndefinedVariable, "data for %s", name.text)
		}
		if _, seen := s.dataAt[v.Name]; seen {
			return semanticError(name, ErrDuplicateName, "data for %s", v.Name)
		}
		if _, err := s.expect(tokEquals); err != nil {
			return err
		}
		values, _, err := s.parseValues(true)
		if err != nil {
			return err
		}
		for _, val := range values {
			if val.Kind == models.LiteralString && v.Type.Numeric() {
				return semanticError(name, ErrMixedTypes, "data for numeric variable %s", v.Name)
			}
		}

		v.Data = values
		s.dataAt[v.Name] = name
		if s.callbacks.OnData != nil {
			if err := s.callbacks.OnData(v.Name, values); err != nil {
				return err
			}
		}
	}
}

// checkData verifies value counts against declared shapes and records the
// current length of the unlimited dimension.
func (s *state) checkData() error {
	records := 0
	for _, v := range s.ds.Variables {
		if len(v.Data) == 0 || v.Type == models.Char || v.Type == models.String {
			continue
		}
		fixed := 1
		unlimited := false
		for _, name := range v.Dimensions {
			dim, _ := s.ds.Dimension(name)
			if dim.Unlimited {
				unlimited = true
				continue
			}
			fixed *= dim.Size
		}

		count := len(v.Data)
		at := s.dataAt[v.Name]
		if !unlimited {
			if count != fixed {
				return semanticError(at, ErrDataShape, "%s has %d values, shape holds %d", v.Name, count, fixed)
			}
			continue
		}
		if count%fixed != 0 {
			return semanticError(at, ErrDataShape, "%s has %d values, not a multiple of %d", v.Name, count, fixed)
		}
		if n := count / fixed; n > records {
			records = n
		}
	}

	for i := range s.ds.Dimensions {
		if s.ds.Dimensions[i].Unlimited {
			s.ds.Dimensions[i].Size = records
		}
	}
	return nil
}

func attributeType(values []models.Literal, suffixes []string, explicit models.DataType) (models.DataType, error) {
	strs, nums := 0, 0
	for _, v := range values {
		if v.Kind == models.LiteralString {
			strs++
		} else {
			nums++
		}
	}
	if strs > 0 && nums > 0 {
		return "", ErrMixedTypes
	}

	if explicit != "" {
		if strs > 0 && explicit.Numeric() {
			return "", ErrMixedTypes
		}
		if nums > 0 && !explicit.Numeric() {
			return "", ErrMixedTypes
		}
		return explicit, nil
	}
	if strs > 0 {
		return models.Char, nil
	}

	var dt models.DataType
	for i, v := range values {
		t := literalType(v.Text, suffixes[i])
		if dt == "" {
			dt = t
			continue
		}
		if t != dt {
			dt = models.Double
		}
	}
	return dt, nil
}

func literalType(text, suffix string) models.DataType {
	switch suffix {
	case "b":
		return models.Byte
	case "s":
		return models.Short
	case "l":
		return models.Int
	case "ll":
		return models.Int64
	case "f":
		return models.Float
	case "d":
		return models.Double
	case "u", "ul":
		return models.UInt
	case "ub":
		return models.UByte
	case "us":
		return models.UShort
	case "ull":
		return models.UInt64
	}
	lower := strings.ToLower(strings.TrimLeft(text, "+-"))
	if strings.HasPrefix(lower, "0x") {
		return models.Int
	}
	if strings.ContainsAny(lower, ".e") || strings.HasPrefix(lower, "nan") || strings.HasPrefix(lower, "inf") {
		return models.Double
	}
	return models.Int
}
