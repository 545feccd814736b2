// Package theme holds the viewer's colour palette and icon set selection.
package theme

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

// Icon sets understood by the page templates.
const (
	IconSetMDI         = "mdi"
	IconSetFontAwesome = "fa"
	IconSetMaterial    = "md"
)

// Palette maps semantic colour roles to hex colours.
type Palette struct {
	Primary    string `yaml:"primary" json:"primary"`
	Secondary  string `yaml:"secondary" json:"secondary"`
	Surface    string `yaml:"surface" json:"surface"`
	Background string `yaml:"background" json:"background"`
}

// Validate validates the palette.
func (p Palette) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Primary, validation.Required, is.HexColor),
		validation.Field(&p.Secondary, validation.Required, is.HexColor),
		validation.Field(&p.Surface, validation.Required, is.HexColor),
		validation.Field(&p.Background, validation.Required, is.HexColor),
	)
}

// Palettes maps theme names to palettes.
type Palettes map[string]Palette

// UnmarshalYAML replaces the whole set instead of merging into the stock
// themes, so a config file can drop "light".
func (p *Palettes) UnmarshalYAML(value *yaml.Node) error {
	m := map[string]Palette{}
	if err := value.Decode(&m); err != nil {
		return err
	}
	*p = m
	return nil
}

// Icons selects the icon set and its aliases. Configured aliases are added
// to the stock ones.
type Icons struct {
	DefaultSet string            `yaml:"default_set" json:"default_set"`
	Aliases    map[string]string `yaml:"aliases" json:"aliases,omitempty"`
}

// Theme is the application-wide look. It is built once at startup and
// passed to whatever renders pages; nothing mutates it afterwards.
type Theme struct {
	Default string   `yaml:"default" json:"default"`
	Themes  Palettes `yaml:"themes" json:"themes"`
	Icons   Icons    `yaml:"icons" json:"icons"`
}

// Validate validates the theme.
func (t *Theme) Validate() error {
	if err := validation.ValidateStruct(t,
		validation.Field(&t.Default, validation.Required),
		validation.Field(&t.Themes, validation.Required),
	); err != nil {
		return err
	}
	if _, ok := t.Themes[t.Default]; !ok {
		return fmt.Errorf("theme: default theme %q is not defined", t.Default)
	}
	for name, p := range t.Themes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("theme %q: %w", name, err)
		}
	}
	return validation.ValidateStruct(&t.Icons,
		validation.Field(&t.Icons.DefaultSet, validation.Required,
			validation.In(IconSetMDI, IconSetFontAwesome, IconSetMaterial)),
	)
}

// Active returns the palette of the default theme.
func (t *Theme) Active() Palette {
	return t.Themes[t.Default]
}

// Default returns the stock light theme with Material Design Icons.
func Default() *Theme {
	return &Theme{
		Default: "light",
		Themes: map[string]Palette{
			"light": {
				Primary:    "#3B82F6",
				Secondary:  "#10B981",
				Surface:    "#FFFFFF",
				Background: "#FAFAFA",
			},
		},
		Icons: Icons{
			DefaultSet: IconSetMDI,
			Aliases: map[string]string{
				"search": "mdi-magnify",
				"tree":   "mdi-tree",
				"upload": "mdi-cloud-upload",
				"info":   "mdi-information-outline",
			},
		},
	}
}
