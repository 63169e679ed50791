package protocol

// SelectKind distinguishes flat from grouped value sets.
type SelectKind string

// Select kinds.
const (
	SelectUngrouped SelectKind = "ungrouped"
	SelectGrouped   SelectKind = "grouped"
)

// ConfigOption is an agent-advertised session setting. The agent owns the
// whole list: every mutation returns a replacement set.
type ConfigOption struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string        `json:"category,omitempty" yaml:"category,omitempty"`
	CurrentValue  string        `json:"current_value" yaml:"current_value"`
	SelectOptions SelectOptions `json:"select_options" yaml:"select_options"`
}

// SelectOptions is the legal value set of a ConfigOption: either Options
// (ungrouped) or Groups (grouped).
type SelectOptions struct {
	Type    SelectKind     `json:"type" yaml:"type"`
	Options []SelectOption `json:"options,omitempty" yaml:"options,omitempty"`
	Groups  []SelectGroup  `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// SelectOption is one legal value.
type SelectOption struct {
	Value       string `json:"value" yaml:"value"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SelectGroup is a named group of legal values.
type SelectGroup struct {
	Group   string         `json:"group" yaml:"group"`
	Name    string         `json:"name" yaml:"name"`
	Options []SelectOption `json:"options" yaml:"options"`
}

// Values flattens the value set, groups in order.
func (s SelectOptions) Values() []SelectOption {
	if s.Type != SelectGrouped {
		return s.Options
	}
	var out []SelectOption
	for _, g := range s.Groups {
		out = append(out, g.Options...)
	}
	return out
}

// Allows reports whether value is in the set.
func (s SelectOptions) Allows(value string) bool {
	for _, o := range s.Values() {
		if o.Value == value {
			return true
		}
	}
	return false
}

// CloneConfigOptions deep-copies a config option set so callers cannot
// alias engine state.
func CloneConfigOptions(in []ConfigOption) []ConfigOption {
	if in == nil {
		return nil
	}
	out := make([]ConfigOption, len(in))
	for i, o := range in {
		o.SelectOptions.Options = append([]SelectOption(nil), o.SelectOptions.Options...)
		if o.SelectOptions.Groups != nil {
			groups := make([]SelectGroup, len(o.SelectOptions.Groups))
			for j, g := range o.SelectOptions.Groups {
				g.Options = append([]SelectOption(nil), g.Options...)
				groups[j] = g
			}
			o.SelectOptions.Groups = groups
		}
		out[i] = o
	}
	return out
}
