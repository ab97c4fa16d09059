// Package secret carries credentials as opaque values with a redacting
// stringifier so they cannot leak through logs or error messages.
package secret

// Redacted is the placeholder emitted wherever a secret would otherwise
// be printed.
const Redacted = "[redacted]"

// Password is an opaque credential. Its String, GoString and JSON forms
// are all redacted; the raw value is only reachable via Reveal.
type Password struct {
	value string
}

// NewPassword wraps a raw credential.
func NewPassword(v string) Password {
	return Password{value: v}
}

// Reveal returns the raw credential for binding into a driver call.
// Callers must not place the returned string in logs or errors.
func (p Password) Reveal() string {
	return p.value
}

// IsZero reports whether no credential was supplied.
func (p Password) IsZero() bool {
	return p.value == ""
}

// String implements fmt.Stringer.
func (p Password) String() string {
	return Redacted
}

// GoString implements fmt.GoStringer so %#v does not leak either.
func (p Password) GoString() string {
	return "secret.Password(" + Redacted + ")"
}

// MarshalJSON always emits the redacted placeholder.
func (p Password) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

// MarshalYAML always emits the redacted placeholder.
func (p Password) MarshalYAML() (interface{}, error) {
	return Redacted, nil
}

// UnmarshalYAML accepts a plain scalar credential from config files.
func (p *Password) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	p.value = raw
	return nil
}
