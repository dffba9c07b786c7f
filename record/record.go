package record

import (
	"encoding/base64"
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is an open, name keyed collection of decoded values. It is the
// representation of decoded structs and unions, and the staging object for
// outgoing requests whose shape is only known at runtime.
//
// Reading a field that was never written yields nil, so "unset" and
// "explicitly nil" look the same through Get. Use Has when the difference
// matters. Fields can be overwritten but never removed.
type Record struct {
	fields map[string]interface{}
}

func New() *Record {
	return &Record{fields: make(map[string]interface{})}
}

// FromMap builds a record holding a copy of fields.
func FromMap(fields map[string]interface{}) *Record {
	r := New()
	for name, v := range fields {
		r.fields[name] = v
	}

	return r
}

// Get returns the value stored under name, or nil if there is none.
func (r *Record) Get(name string) interface{} {
	if r == nil {
		return nil
	}

	return r.fields[name]
}

// Set stores v under name, replacing any previous value. Set returns the
// record so staging a request can be chained.
func (r *Record) Set(name string, v interface{}) *Record {
	r.fields[name] = v
	return r
}

func (r *Record) Has(name string) bool {
	if r == nil {
		return false
	}

	_, ok := r.fields[name]
	return ok
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}

	return len(r.fields)
}

// Names returns the field names in sorted order.
func (r *Record) Names() []string {
	if r == nil {
		return nil
	}

	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Equal reports whether both records hold deeply equal values under every
// name. Insertion order plays no part, and as with Get a field holding nil
// equals a missing one.
func (r *Record) Equal(other *Record) bool {
	for _, name := range r.Names() {
		if !reflect.DeepEqual(r.Get(name), other.Get(name)) {
			return false
		}
	}

	for _, name := range other.Names() {
		if !r.Has(name) && other.Get(name) != nil {
			return false
		}
	}

	return true
}

// MarshalJSON renders the record as a JSON object with its fields in name
// order. Nested records render as nested objects and opaque data, wherever
// it sits, as a standard base64 string.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := []byte("{}")

	for _, name := range r.Names() {
		var err error
		out, err = sjson.SetBytes(out, escapePath(name), jsonValue(r.fields[name]))
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// jsonValue replaces opaque data inside v with its base64 text. sjson writes a
// bare []byte as a raw string, which mangles anything that isn't UTF-8.
func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = jsonValue(e)
		}
		return out
	default:
		return v
	}
}

// Query evaluates a gjson path against the JSON rendering of the record.
func (r *Record) Query(path string) (gjson.Result, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return gjson.Result{}, err
	}

	return gjson.GetBytes(data, path), nil
}

func (r *Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return "<record: " + err.Error() + ">"
	}

	return string(data)
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
)

func escapePath(name string) string {
	return pathEscaper.Replace(name)
}
