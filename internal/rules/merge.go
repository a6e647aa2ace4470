package rules

// Patch is a partial edit. Nil fields keep the current value.
type Patch struct {
	Name       *string     `yaml:"name,omitempty" json:"name,omitempty"`
	Expression *Expression `yaml:"expression,omitempty" json:"expression,omitempty"`
	Action     *Action     `yaml:"action,omitempty" json:"action,omitempty"`
	Kind       *Kind       `yaml:"kind,omitempty" json:"kind,omitempty"`
	IsShadow   *bool       `yaml:"shadow,omitempty" json:"shadow,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Expression == nil && p.Action == nil && p.Kind == nil && p.IsShadow == nil
}

// Merge resolves each field as patch-or-old. Identity and version fields are
// copied from old; the caller assigns the new version.
func Merge(patch Patch, old Instance) Instance {
	merged := old
	merged.Name = or(patch.Name, old.Name)
	merged.Expression = or(patch.Expression, old.Expression)
	merged.Action = or(patch.Action, old.Action)
	merged.Kind = or(patch.Kind, old.Kind)
	merged.IsShadow = or(patch.IsShadow, old.IsShadow)
	return merged
}

func or[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}
