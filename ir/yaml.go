package ir

import (
	"io"

	"gopkg.in/yaml.v3"
)

type yamlModule struct {
	Functions []yamlFunction `yaml:"functions"`
}

type yamlFunction struct {
	Name   string      `yaml:"name"`
	Params []string    `yaml:"params,flow"`
	Extern bool        `yaml:"extern,omitempty"`
	Blocks []yamlBlock `yaml:"blocks,omitempty"`
}

type yamlBlock struct {
	Label  string   `yaml:"label"`
	Preds  []string `yaml:"preds,flow,omitempty"`
	Instrs []string `yaml:"instrs"`
}

// WriteYAML writes a structural dump of m: one entry per function, with
// its blocks, their predecessors and their instructions.
func WriteYAML(w io.Writer, m *Module) error {
	doc := yamlModule{Functions: []yamlFunction{}}
	for _, f := range m.Functions() {
		yf := yamlFunction{Name: f.Name, Params: f.ParamNames(), Extern: f.IsDeclaration()}
		for _, id := range f.Layout {
			b := f.Blocks[id]
			yb := yamlBlock{Label: b.Name, Instrs: []string{}}
			for _, p := range b.Preds {
				yb.Preds = append(yb.Preds, f.Blocks[p].Name)
			}
			for _, in := range b.Instrs {
				yb.Instrs = append(yb.Instrs, f.FormatInstr(in))
			}
			yf.Blocks = append(yf.Blocks, yb)
		}
		doc.Functions = append(doc.Functions, yf)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
