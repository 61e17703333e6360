package wire

// FieldDecoder extracts one named field from a raw body. The second return
// value reports presence: firmware that does not support a field simply
// reports it absent, which merges as "unchanged" upstream.
type FieldDecoder func(body []byte) (Value, bool)

// FieldTable maps attribute names to their decoders for one body type and
// protocol version. Tables are static and checked at compile time against the
// device-class attribute name set.
type FieldTable map[string]FieldDecoder

// Body is a decoded message body paired with the field table for its subtype.
type Body struct {
	raw   []byte
	table FieldTable
}

// NewBody wraps a raw body with its field table. A nil table yields a body
// with no extractable fields, which callers treat as an empty update.
func NewBody(raw []byte, table FieldTable) Body {
	return Body{raw: raw, table: table}
}

// Type returns the body-type byte, or zero for an empty body.
func (b Body) Type() uint8 {
	if len(b.raw) == 0 {
		return 0
	}
	return b.raw[0]
}

// Raw returns the underlying body bytes.
func (b Body) Raw() []byte { return b.raw }

// Field looks up a named field. Absent means the field does not exist for
// this body type or this firmware did not include it.
func (b Body) Field(name string) (Value, bool) {
	if b.table == nil {
		return Value{}, false
	}
	dec, ok := b.table[name]
	if !ok {
		return Value{}, false
	}
	return dec(b.raw)
}

// Has reports whether the named field is present in this body.
func (b Body) Has(name string) bool {
	_, ok := b.Field(name)
	return ok
}
