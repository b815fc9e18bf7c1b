// Package prompts holds the fixed replies and classifier prompt text.
//
// The defaults are embedded from catalog.yaml. An operator can point
// PROMPTS_PATH at a YAML file with the same shape; keys present there
// replace the embedded ones and everything else keeps its default.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// FlowPrompts are the replies for one slot-filling flow.
type FlowPrompts struct {
	Start string            `yaml:"start"`
	Ask   map[string]string `yaml:"ask"`
	Done  string            `yaml:"done"`
}

// Catalog is the full set of user-facing strings.
type Catalog struct {
	Flows struct {
		CreateBug         FlowPrompts `yaml:"create_bug"`
		CreateRequirement FlowPrompts `yaml:"create_requirement"`
		CreateQuery       FlowPrompts `yaml:"create_query"`
	} `yaml:"flows"`
	DefaultReply     string `yaml:"default_reply"`
	Cancelled        string `yaml:"cancelled"`
	Unreachable      string `yaml:"unreachable"`
	Unparseable      string `yaml:"unparseable"`
	ClassifierSystem string `yaml:"classifier_system"`
	ClassifierUser   string `yaml:"classifier_user"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := parse(nil)
	if err != nil {
		panic("prompts: embedded catalog is invalid: " + err.Error())
	}
	return c
}

// Load returns the embedded catalog overlaid with the YAML file at path.
// An empty path yields the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return parse(data)
}

func parse(override []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(defaultCatalog, &c); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}
	if len(override) > 0 {
		if err := yaml.Unmarshal(override, &c); err != nil {
			return nil, fmt.Errorf("parse prompts override: %w", err)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for name, f := range map[string]FlowPrompts{
		"create_bug":         c.Flows.CreateBug,
		"create_requirement": c.Flows.CreateRequirement,
		"create_query":       c.Flows.CreateQuery,
	} {
		if f.Start == "" || f.Done == "" {
			return fmt.Errorf("flow %s: start and done prompts are required", name)
		}
	}
	if c.ClassifierSystem == "" {
		return fmt.Errorf("classifier_system prompt is required")
	}
	return nil
}

// Flow returns the prompts for the named flow. Unknown names yield a zero value.
func (c *Catalog) Flow(name string) FlowPrompts {
	switch name {
	case "create_bug":
		return c.Flows.CreateBug
	case "create_requirement":
		return c.Flows.CreateRequirement
	case "create_query":
		return c.Flows.CreateQuery
	default:
		return FlowPrompts{}
	}
}

// UnreachableReply formats the reply used when the classifier transport fails.
func (c *Catalog) UnreachableReply(err error) string {
	if !strings.Contains(c.Unreachable, "%s") {
		return c.Unreachable
	}
	return fmt.Sprintf(c.Unreachable, err)
}

// ClassifierUserPrompt renders the per-message classifier prompt.
func (c *Catalog) ClassifierUserPrompt(text, language string) string {
	return strings.NewReplacer("{{text}}", text, "{{language}}", language).Replace(c.ClassifierUser)
}

// ClassifierSystemPrompt renders the system prompt for language.
func (c *Catalog) ClassifierSystemPrompt(language string) string {
	return strings.ReplaceAll(c.ClassifierSystem, "{{language}}", language)
}
