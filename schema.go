package excelmap

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

/* =========================================================
 *  Kinds, Getters & Setters
 * ========================================================= */

// Kind is the declared value type a setter accepts.
type Kind int

const (
	KindString Kind = iota + 1
	KindBool
	KindInt
	KindUint
	KindFloat
	KindTime
	// KindText is a property with its own text parser (e.g. encoding.TextUnmarshaler).
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Getter reads a property from a record.
type Getter[T any] func(rec *T) (any, error)

// Setter is one overload of a property setter.
//
// Set receives nil (only when Nullable), or a value of the Kind's Go type:
// string, bool, int64, uint64, float64 or time.Time. For KindText, Set receives
// whatever Parse returned.
type Setter[T any] struct {
	Kind     Kind
	Nullable bool

	// Parse converts cell text for this setter. If nil, the Kind's default parser is used.
	Parse func(text string) (any, error)

	Set func(rec *T, v any) error
}

// StringSetter builds a nullable KindString setter; nil is passed as "".
func StringSetter[T any](fn func(rec *T, v string) error) Setter[T] {
	return Setter[T]{Kind: KindString, Nullable: true, Set: func(rec *T, v any) error {
		s, _ := v.(string)
		return fn(rec, s)
	}}
}

// BoolSetter builds a KindBool setter.
func BoolSetter[T any](fn func(rec *T, v bool) error) Setter[T] {
	return Setter[T]{Kind: KindBool, Set: func(rec *T, v any) error {
		return fn(rec, v.(bool))
	}}
}

// IntSetter builds a KindInt setter.
func IntSetter[T any](fn func(rec *T, v int64) error) Setter[T] {
	return Setter[T]{Kind: KindInt, Set: func(rec *T, v any) error {
		return fn(rec, v.(int64))
	}}
}

// FloatSetter builds a KindFloat setter.
func FloatSetter[T any](fn func(rec *T, v float64) error) Setter[T] {
	return Setter[T]{Kind: KindFloat, Set: func(rec *T, v any) error {
		return fn(rec, v.(float64))
	}}
}

// TimeSetter builds a nullable KindTime setter; nil is passed as the zero time.
func TimeSetter[T any](fn func(rec *T, v time.Time) error) Setter[T] {
	return Setter[T]{Kind: KindTime, Nullable: true, Set: func(rec *T, v any) error {
		t, _ := v.(time.Time)
		return fn(rec, t)
	}}
}

/* =========================================================
 *  Type Metadata & Tags
 * ========================================================= */

// fieldMeta stores mapping info for a single struct field.
type fieldMeta struct {
	Index      []int
	FieldName  string
	PropName   string // From `excel:"name"`, else the field name
	TimeFormat string // From tag `fmt:"2006-01-02"`
	Type       reflect.Type
}

// typeMeta stores metadata for a struct type.
type typeMeta struct {
	Fields []*fieldMeta
}

var metaCache sync.Map // map[reflect.Type]*typeMeta

var (
	timeType          = reflect.TypeOf(time.Time{})
	textUnmarshalType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// getTypeMeta builds and caches metadata for a struct type.
func getTypeMeta(t reflect.Type) *typeMeta {
	if v, ok := metaCache.Load(t); ok {
		return v.(*typeMeta)
	}

	m := &typeMeta{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		// Skip unexported fields.
		if f.PkgPath != "" {
			continue
		}
		tag := strings.TrimSpace(f.Tag.Get("excel"))
		if tag == "-" {
			continue
		}
		name := f.Name
		if tag != "" {
			name = tag
		}
		m.Fields = append(m.Fields, &fieldMeta{
			Index:      f.Index,
			FieldName:  f.Name,
			PropName:   name,
			TimeFormat: f.Tag.Get("fmt"),
			Type:       f.Type,
		})
	}

	v, _ := metaCache.LoadOrStore(t, m)
	return v.(*typeMeta)
}

/* =========================================================
 *  Schema
 * ========================================================= */

type property[T any] struct {
	name    string
	layout  string
	get     Getter[T]
	setters []Setter[T]
}

// Schema is the property registry of a record type T: for each property name
// a getter and an ordered list of setter overloads.
type Schema[T any] struct {
	props   map[string]*property[T]
	folded  map[string]*property[T] // lowercased name → property
	newFunc func() T
}

// NewSchema returns a schema with one property per exported field of T.
// Non-struct record types start with an empty schema.
func NewSchema[T any]() (*Schema[T], error) {
	s := &Schema[T]{
		props:  make(map[string]*property[T]),
		folded: make(map[string]*property[T]),
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		return nil, fmt.Errorf("%w: record type %s is a pointer, use %s", ErrInvalidArgument, t, t.Elem())
	}
	if t.Kind() != reflect.Struct {
		return s, nil
	}
	for _, fm := range getTypeMeta(t).Fields {
		p := s.property(fm.PropName)
		p.layout = fm.TimeFormat
		p.get = fieldGetter[T](fm)
		if st, ok := fieldSetter[T](fm); ok {
			p.setters = append(p.setters, st)
		}
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error.
func MustSchema[T any]() *Schema[T] {
	s, err := NewSchema[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// property returns the property named name, matching case-insensitively, and
// creates it if there is none.
func (s *Schema[T]) property(name string) *property[T] {
	if p := s.lookup(name); p != nil {
		return p
	}
	p := &property[T]{name: name}
	s.props[name] = p
	s.folded[strings.ToLower(name)] = p
	return p
}

// lookup finds a property by exact name, then case-insensitively.
func (s *Schema[T]) lookup(name string) *property[T] {
	if p, ok := s.props[name]; ok {
		return p
	}
	return s.folded[strings.ToLower(name)]
}

// Getter sets (or replaces) the getter of prop.
func (s *Schema[T]) Getter(prop string, g Getter[T]) *Schema[T] {
	s.property(prop).get = g
	return s
}

// Setter appends a setter overload to prop. Overloads are tried in the order
// they were added; derived field setters come first.
func (s *Schema[T]) Setter(prop string, st Setter[T]) *Schema[T] {
	p := s.property(prop)
	p.setters = append(p.setters, st)
	return s
}

// Constructor sets how new records are created when parsing.
func (s *Schema[T]) Constructor(fn func() T) *Schema[T] {
	s.newFunc = fn
	return s
}

// Layout sets the time layout used to format and parse prop.
func (s *Schema[T]) Layout(prop, layout string) *Schema[T] {
	s.property(prop).layout = layout
	return s
}

// Setters returns the setter overloads of prop, in registration order.
func (s *Schema[T]) Setters(prop string) []Setter[T] {
	p := s.lookup(prop)
	if p == nil {
		return nil
	}
	return p.setters
}

// SetterFor returns the first setter of prop accepting kind.
func (s *Schema[T]) SetterFor(prop string, kind Kind) (Setter[T], bool) {
	for _, st := range s.Setters(prop) {
		if st.Kind == kind {
			return st, true
		}
	}
	return Setter[T]{}, false
}

// Get reads prop from rec.
func (s *Schema[T]) Get(rec *T, prop string) (v any, err error) {
	p := s.lookup(prop)
	if p == nil || p.get == nil {
		return nil, fmt.Errorf("%w: no getter for property %q", ErrAccess, prop)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: property %q: panic: %v", ErrAccess, prop, r)
		}
	}()
	v, err = p.get(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: property %q: %w", ErrAccess, prop, err)
	}
	return v, nil
}

func (s *Schema[T]) newRecord() T {
	if s.newFunc != nil {
		return s.newFunc()
	}
	var zero T
	return zero
}

func (s *Schema[T]) layoutOf(prop string) string {
	if p := s.lookup(prop); p != nil {
		return p.layout
	}
	return ""
}

func (s *Schema[T]) empty() bool {
	return len(s.props) == 0
}

// invoke calls st.Set; any error or panic fails with ErrAccess.
func invoke[T any](st Setter[T], rec *T, prop string, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: property %q: panic: %v", ErrAccess, prop, r)
		}
	}()
	if err := st.Set(rec, v); err != nil {
		return fmt.Errorf("%w: property %q: %w", ErrAccess, prop, err)
	}
	return nil
}

/* =========================================================
 *  Field accessors (reflection)
 * ========================================================= */

func fieldGetter[T any](fm *fieldMeta) Getter[T] {
	return func(rec *T) (any, error) {
		return reflect.ValueOf(rec).Elem().FieldByIndex(fm.Index).Interface(), nil
	}
}

// fieldSetter builds the setter of a struct field, if its type is supported.
func fieldSetter[T any](fm *fieldMeta) (Setter[T], bool) {
	t := fm.Type
	nullable := false
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
		nullable = true
	}

	var st Setter[T]
	switch {
	case t == timeType:
		// Parsed with the property layout, which starts as the fmt tag.
		st = Setter[T]{Kind: KindTime, Nullable: true}
	case reflect.PointerTo(t).Implements(textUnmarshalType):
		st = Setter[T]{Kind: KindText, Nullable: nullable, Parse: func(s string) (any, error) {
			p := reflect.New(t)
			if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			return p.Elem().Interface(), nil
		}}
	default:
		k, ok := kindOf(t)
		if !ok {
			return Setter[T]{}, false
		}
		st = Setter[T]{Kind: k, Nullable: nullable || k == KindString, Parse: rangedParser(k, t)}
	}

	st.Set = func(rec *T, v any) error {
		field := reflect.ValueOf(rec).Elem().FieldByIndex(fm.Index)
		if !field.CanSet() {
			return fmt.Errorf("field %s is not settable", fm.FieldName)
		}
		if v == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		if field.Kind() == reflect.Ptr {
			elem := reflect.New(field.Type().Elem()).Elem()
			if err := assign(elem, v); err != nil {
				return err
			}
			field.Set(elem.Addr())
			return nil
		}
		return assign(field, v)
	}
	return st, true
}

// rangedParser parses text for a numeric field of type t and rejects values
// that do not fit t, so the next overload gets a chance. It returns nil for
// kinds whose default parser already covers the whole range.
func rangedParser(k Kind, t reflect.Type) func(string) (any, error) {
	zero := reflect.New(t).Elem()
	switch k {
	case KindInt:
		return func(s string) (any, error) {
			n, err := parseInt(s)
			if err != nil {
				return nil, err
			}
			if zero.OverflowInt(n) {
				return nil, fmt.Errorf("value %d overflows %s", n, t)
			}
			return n, nil
		}
	case KindUint:
		return func(s string) (any, error) {
			n, err := parseUint(s)
			if err != nil {
				return nil, err
			}
			if zero.OverflowUint(n) {
				return nil, fmt.Errorf("value %d overflows %s", n, t)
			}
			return n, nil
		}
	case KindFloat:
		return func(s string) (any, error) {
			f, err := parseFloat(s)
			if err != nil {
				return nil, err
			}
			if zero.OverflowFloat(f) {
				return nil, fmt.Errorf("value %g overflows %s", f, t)
			}
			return f, nil
		}
	}
	return nil
}

func kindOf(t reflect.Type) (Kind, bool) {
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Bool:
		return KindBool, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, true
	}
	return 0, false
}

// assign stores a coerced value into a concrete (non-pointer) field.
func assign(field reflect.Value, v any) error {
	switch x := v.(type) {
	case string:
		field.SetString(x)
	case bool:
		field.SetBool(x)
	case int64:
		if field.OverflowInt(x) {
			return fmt.Errorf("value %d overflows %s", x, field.Type())
		}
		field.SetInt(x)
	case uint64:
		if field.OverflowUint(x) {
			return fmt.Errorf("value %d overflows %s", x, field.Type())
		}
		field.SetUint(x)
	case float64:
		if field.OverflowFloat(x) {
			return fmt.Errorf("value %g overflows %s", x, field.Type())
		}
		field.SetFloat(x)
	default:
		rv := reflect.ValueOf(v)
		if !rv.Type().AssignableTo(field.Type()) {
			return fmt.Errorf("cannot assign %s to %s", rv.Type(), field.Type())
		}
		field.Set(rv)
	}
	return nil
}
