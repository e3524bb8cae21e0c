package contextdao

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Undefined marks a value that exists as a placeholder but carries no data,
// e.g. holes in sparse arrays. It is distinct from nil (null) so the codec
// can round-trip both.
var Undefined = undefined{}

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Hash values are type-tagged strings: a leading __TYPE__ token introduces
// boolean, number, null, or undefined; absence of a tag denotes a plain
// string. Ambiguous strings like "true" are stored unchanged.
const (
	tagBoolean   = "boolean"
	tagNumber    = "number"
	tagNull      = "null"
	tagUndefined = "undefined"
)

// EncodeValue encodes one leaf value into its tagged hash representation.
func EncodeValue(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "__" + tagNull + "__", nil
	case undefined:
		return "__" + tagUndefined + "__", nil
	case bool:
		return "__" + tagBoolean + "__" + strconv.FormatBool(x), nil
	case string:
		return x, nil
	case float64:
		return "__" + tagNumber + "__" + strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return "__" + tagNumber + "__" + strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case int:
		return "__" + tagNumber + "__" + strconv.Itoa(x), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("__"+tagNumber+"__%d", x), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("__"+tagNumber+"__%d", x), nil
	case json.Number:
		return "__" + tagNumber + "__" + x.String(), nil
	default:
		return "", fmt.Errorf("unsupported context value of type %T", v)
	}
}

// DecodeValue is the inverse of EncodeValue. An unknown tag falls back to the
// raw post-tag content; anything untagged is a plain string.
func DecodeValue(s string) interface{} {
	if !strings.HasPrefix(s, "__") {
		return s
	}
	end := strings.Index(s[2:], "__")
	if end < 0 {
		return s
	}
	tag, rest := s[2:2+end], s[4+end:]
	switch tag {
	case tagBoolean:
		return rest == "true"
	case tagNumber:
		if f, err := strconv.ParseFloat(rest, 64); err == nil {
			return f
		}
		return rest
	case tagNull:
		return nil
	case tagUndefined:
		return Undefined
	default:
		return rest
	}
}
