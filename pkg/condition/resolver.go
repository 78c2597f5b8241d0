package condition

// StaticResolver resolves identifiers from a fixed table.
type StaticResolver map[string]any

// Resolve implements replacer.ReferenceResolver.
func (r StaticResolver) Resolve(identifier string) any {
	return r[identifier]
}

// NopResolver resolves nothing.
type NopResolver struct{}

// Resolve implements replacer.ReferenceResolver.
func (NopResolver) Resolve(string) any {
	return nil
}
