package export

import (
	"encoding/json"
	"io"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"gopkg.in/yaml.v3"
)

type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer { return &JSONRenderer{} }

func (r *JSONRenderer) Extension() string { return "json" }
func (r *JSONRenderer) MimeType() string  { return "application/json" }

func (r *JSONRenderer) Render(w io.Writer, report *domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type YAMLRenderer struct{}

func NewYAMLRenderer() *YAMLRenderer { return &YAMLRenderer{} }

func (r *YAMLRenderer) Extension() string { return "yaml" }
func (r *YAMLRenderer) MimeType() string  { return "application/yaml" }

func (r *YAMLRenderer) Render(w io.Writer, report *domain.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
