package netsuke

// Manifest is the root entity of the typed tree produced by stage 4 (final
// rendering). Unknown top-level keys are rejected before a Manifest is ever
// constructed; see decode.go.
type Manifest struct {
	NetsukeVersion string            `mapstructure:"netsuke_version"`
	Vars           map[string]string `mapstructure:"vars"`
	Rules          []Rule            `mapstructure:"rules"`
	Actions        []Target          `mapstructure:"actions"`
	Targets        []Target          `mapstructure:"targets"`
	Defaults       []string          `mapstructure:"defaults"`
	Macros         []MacroDefinition `mapstructure:"macros"`
}

// RecipeKind discriminates the three ways a Rule or Target may describe the
// work it performs.
type RecipeKind int

const (
	RecipeCommand RecipeKind = iota
	RecipeScript
	RecipeRule
)

// Recipe is a sum type in spirit: exactly one of Command, Script, or Rule
// is meaningful, selected by Kind.
type Recipe struct {
	Kind    RecipeKind
	Command string `mapstructure:"command"`
	Script  string `mapstructure:"script"`
	Rule    StringOrList `mapstructure:"rule"`
}

// Rule is a named command template that targets may reference by name
// instead of repeating a recipe inline.
type Rule struct {
	Name        string   `mapstructure:"name"`
	Recipe      Recipe   `mapstructure:",squash"`
	Description string   `mapstructure:"description"`
	Deps        StringOrList `mapstructure:"deps"`
}

// Target describes one or more build outputs and how to produce them. An
// entry read from the manifest's `actions` sequence is a Target with Phony
// forced to true during decoding (see decode.go); everything else about its
// shape is identical.
type Target struct {
	Name        StringOrList `mapstructure:"name"`
	Recipe      Recipe       `mapstructure:",squash"`
	Sources     StringOrList `mapstructure:"sources"`
	Deps        StringOrList `mapstructure:"deps"`
	OrderOnly   StringOrList `mapstructure:"order_only"`
	Vars        map[string]string `mapstructure:"vars"`
	Phony       bool `mapstructure:"phony"`
	Always      bool `mapstructure:"always"`
	Description string `mapstructure:"description"`
	Depfile     string `mapstructure:"depfile"`
	DepsFormat  string `mapstructure:"deps_format"`
	Pool        string `mapstructure:"pool"`
	Restat      bool   `mapstructure:"restat"`

	// Foreach/When are only meaningful in the untyped tree during stage 3;
	// by the time a Target is decoded to this typed form they have already
	// been resolved away. They are kept here, always empty post-expansion,
	// so the same struct tag set can describe both the pre- and
	// post-expansion shape without a parallel type.
	Foreach RawValue          `mapstructure:"foreach"`
	When    string            `mapstructure:"when"`
}

// RawValue holds an as-yet-uninterpreted YAML scalar/sequence/mapping,
// deferred past the point where Target's other fields are decoded. Used
// only for the foreach source expression, which may be a literal sequence
// or a template string that evaluates to one.
type RawValue struct {
	Value any
}

// Outputs returns the target's output paths as a flat slice, regardless of
// whether Name was written as a scalar or a sequence.
func (t *Target) Outputs() []string {
	return t.Name.Slice()
}

// DisplayName returns the first output, used throughout diagnostics as the
// target's human-readable identity.
func (t *Target) DisplayName() string {
	if outs := t.Outputs(); len(outs) > 0 {
		return outs[0]
	}
	return "<unnamed>"
}

// MacroDefinition is one entry of the manifest's top-level `macros`
// sequence: a Jinja-style macro signature and its body text.
type MacroDefinition struct {
	Signature string `mapstructure:"signature"`
	Body      string `mapstructure:"body"`
}
