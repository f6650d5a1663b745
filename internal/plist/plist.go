// Package plist implements the property-list parser consumed service: given a UTF-8 XML
// property-list byte stream, it produces a Property tree reachable through
// internal/interfaces.PlistProperty. Built directly on the standard library's
// encoding/xml; the format subset FVDE uses is small enough that an external plist
// dependency would only ever be exercised here.
package plist

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// kind enumerates the property-list node types this parser understands. FVDE's
// EncryptedRoot.plist and inline XML blobs use only these.
type kind int

const (
	kindDict kind = iota
	kindArray
	kindString
	kindInteger
	kindData
	kindBool
)

// Property is the concrete interfaces.PlistProperty node.
type Property struct {
	k        kind
	dict     map[string]*Property
	array    []*Property
	strValue string
	intValue int64
	dataRaw  string // base64, decoded lazily by ValueData
	boolTrue bool
}

var _ interfaces.PlistProperty = (*Property)(nil)

// SubPropertyByName implements interfaces.PlistProperty.SubPropertyByName.
func (p *Property) SubPropertyByName(name string) (interfaces.PlistProperty, bool) {
	if p.k != kindDict {
		return nil, false
	}
	child, ok := p.dict[name]
	if !ok {
		return nil, false
	}
	return child, true
}

// ValueString implements interfaces.PlistProperty.ValueString.
func (p *Property) ValueString() (string, error) {
	if p.k != kindString {
		return "", types.Errorf(types.ErrUnsupportedValue, "Property.ValueString", "node is not a <string>")
	}
	return p.strValue, nil
}

// ValueInteger implements interfaces.PlistProperty.ValueInteger.
func (p *Property) ValueInteger() (int64, error) {
	if p.k != kindInteger {
		return 0, types.Errorf(types.ErrUnsupportedValue, "Property.ValueInteger", "node is not an <integer>")
	}
	return p.intValue, nil
}

// ValueData implements interfaces.PlistProperty.ValueData.
func (p *Property) ValueData() ([]byte, error) {
	if p.k != kindData {
		return nil, types.Errorf(types.ErrUnsupportedValue, "Property.ValueData", "node is not a <data>")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.dataRaw))
	if err != nil {
		return nil, types.Errorf(types.ErrUnsupportedValue, "Property.ValueData", "invalid base64: %v", err)
	}
	return decoded, nil
}

// ArrayLen implements interfaces.PlistProperty.ArrayLen.
func (p *Property) ArrayLen() (int, error) {
	if p.k != kindArray {
		return 0, types.Errorf(types.ErrUnsupportedValue, "Property.ArrayLen", "node is not an <array>")
	}
	return len(p.array), nil
}

// ArrayEntry implements interfaces.PlistProperty.ArrayEntry.
func (p *Property) ArrayEntry(i int) (interfaces.PlistProperty, error) {
	if p.k != kindArray {
		return nil, types.Errorf(types.ErrUnsupportedValue, "Property.ArrayEntry", "node is not an <array>")
	}
	if i < 0 || i >= len(p.array) {
		return nil, types.Errorf(types.ErrOutOfBounds, "Property.ArrayEntry", "index %d out of range (len %d)", i, len(p.array))
	}
	return p.array[i], nil
}

// ValueBool implements interfaces.PlistProperty.ValueBool.
func (p *Property) ValueBool() (bool, error) {
	if p.k != kindBool {
		return false, types.Errorf(types.ErrUnsupportedValue, "Property.ValueBool", "node is not a <true/>/<false/>")
	}
	return p.boolTrue, nil
}

// Parser is the concrete interfaces.PlistParser.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser {
	return &Parser{}
}

var _ interfaces.PlistParser = (*Parser)(nil)

// Parse implements interfaces.PlistParser.Parse: decodes data as an XML property list
// and returns the top-level <dict>.
func (pr *Parser) Parse(data []byte) (interfaces.PlistProperty, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	// Advance to the <plist> element, then to its single child value.
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, types.Errorf(types.ErrUnsupportedValue, "Parser.Parse", "no <plist> root element found: %v", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "plist" {
			break
		}
	}
	root, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// ParseFragment implements interfaces.PlistParser.ParseFragment: parses a bare value
// element with no enclosing <plist> wrapper, as carried inline by 0x0012 and 0x001a
// metadata-block payloads.
func (pr *Parser) ParseFragment(data []byte) (interfaces.PlistProperty, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	return parseValue(dec)
}

// parseValue parses the next value element (<dict>, <array>, <string>, <integer>,
// <data>, <true/>, <false/>) from dec, skipping over any unrecognized element.
func parseValue(dec *xml.Decoder) (*Property, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, types.Errorf(types.ErrUnsupportedValue, "parseValue", "%v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		v, err := parseValueFromStart(dec, start)
		if v == nil && err == nil {
			continue // unrecognized element, already skipped
		}
		return v, err
	}
}

// parseDict parses a <dict> body of alternating <key>name</key> / value elements.
func parseDict(dec *xml.Decoder) (*Property, error) {
	d := &Property{k: kindDict, dict: make(map[string]*Property)}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, types.Errorf(types.ErrUnsupportedValue, "parseDict", "%v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "key" {
				return nil, types.Errorf(types.ErrUnsupportedValue, "parseDict", "expected <key>, got <%s>", t.Name.Local)
			}
			key, err := readCharData(dec, "key")
			if err != nil {
				return nil, err
			}
			value, err := parseValue(dec)
			if err != nil {
				return nil, err
			}
			d.dict[key] = value
		case xml.EndElement:
			if t.Name.Local == "dict" {
				return d, nil
			}
		}
	}
}

// parseArray parses an <array> body of consecutive value elements.
func parseArray(dec *xml.Decoder) (*Property, error) {
	a := &Property{k: kindArray}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, types.Errorf(types.ErrUnsupportedValue, "parseArray", "%v", err)
		}
		if end, ok := tok.(xml.EndElement); ok && end.Name.Local == "array" {
			return a, nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		value, err := parseValueFromStart(dec, start)
		if err != nil {
			return nil, err
		}
		a.array = append(a.array, value)
	}
}

// parseValueFromStart parses a value whose opening StartElement has already been
// consumed from dec (used by parseArray, which must peek the tag name itself).
func parseValueFromStart(dec *xml.Decoder, start xml.StartElement) (*Property, error) {
	switch start.Name.Local {
	case "dict":
		return parseDict(dec)
	case "array":
		return parseArray(dec)
	case "string":
		s, err := readCharData(dec, "string")
		if err != nil {
			return nil, err
		}
		return &Property{k: kindString, strValue: s}, nil
	case "integer":
		s, err := readCharData(dec, "integer")
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, types.Errorf(types.ErrUnsupportedValue, "parseValueFromStart", "invalid <integer>: %v", err)
		}
		return &Property{k: kindInteger, intValue: n}, nil
	case "data":
		s, err := readCharData(dec, "data")
		if err != nil {
			return nil, err
		}
		return &Property{k: kindData, dataRaw: s}, nil
	case "true":
		return &Property{k: kindBool, boolTrue: true}, skipToEnd(dec, "true")
	case "false":
		return &Property{k: kindBool, boolTrue: false}, skipToEnd(dec, "false")
	default:
		return nil, skipToEnd(dec, start.Name.Local)
	}
}

// readCharData reads character data up to the matching end element named tag.
func readCharData(dec *xml.Decoder, tag string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", types.Errorf(types.ErrUnsupportedValue, "readCharData", "%v", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			if t.Name.Local == tag {
				return sb.String(), nil
			}
		}
	}
}

// skipToEnd discards tokens until the matching end element named tag is seen.
func skipToEnd(dec *xml.Decoder, tag string) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return types.Errorf(types.ErrUnsupportedValue, "skipToEnd", "%v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == tag {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == tag {
				if depth == 0 {
					return nil
				}
				depth--
			}
		}
	}
}
