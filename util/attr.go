package util

import (
	"fmt"
	"reflect"
)

// MustHave copies each attribute named in attrList from the decoded map m
// into the pointer it maps to. A missing attribute or one of another kind
// fails.
func MustHave(m map[string]any, attrList map[string]any) error {
	for key, ptr := range attrList {
		rValue := reflect.ValueOf(ptr).Elem()
		v, exist := m[key]
		if !exist || v == nil {
			return ErrLost{key}
		}
		if reflect.TypeOf(v).Kind() != rValue.Kind() {
			return ErrInvalid{key}
		}
		rValue.Set(reflect.ValueOf(v).Convert(rValue.Type()))
	}
	return nil
}

type ErrLost struct {
	Attr string
}

func (e ErrLost) Error() string {
	return fmt.Sprintf("config: lost attribute '%v'", e.Attr)
}

func (e ErrLost) Is(err error) bool {
	t, ok := err.(ErrLost)
	return ok && e.Attr == t.Attr
}

type ErrInvalid struct {
	Attr string
}

func (e ErrInvalid) Error() string {
	return fmt.Sprintf("config: invalid attribute '%v'", e.Attr)
}

func (e ErrInvalid) Is(err error) bool {
	t, ok := err.(ErrInvalid)
	return ok && e.Attr == t.Attr
}
