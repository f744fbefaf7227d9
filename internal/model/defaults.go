package model

// extendedDefault marks a default that is not a value. Instances are only
// ever compared by pointer identity, so no user value can collide with them.
type extendedDefault struct{ name string }

func (d *extendedDefault) String() string { return d.name }

var (
	// Required makes construction fail when the field is not supplied.
	Required = &extendedDefault{name: "Required"}
	// Optional makes an unsupplied field hold the type's empty value.
	Optional = &extendedDefault{name: "Optional"}
)

func isRequired(v any) bool {
	d, ok := v.(*extendedDefault)
	return ok && d == Required
}

func isOptional(v any) bool {
	d, ok := v.(*extendedDefault)
	return ok && d == Optional
}
