package service

import "encoding/json"

// OptionalString is a patch field that tells "absent" apart from "null".
// Set is true whenever the key appeared in the body; Value is nil for
// JSON null.  An empty string clears the field as well.
type OptionalString struct {
	Set   bool
	Value *string
}

// Some returns a set OptionalString holding v (which may be nil).
func Some(v *string) OptionalString { return OptionalString{Set: true, Value: v} }

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
