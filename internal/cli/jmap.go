package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats understood by Print
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// JMap is a generic action result
type JMap map[string]interface{}

// ID returns the id value
func (j JMap) ID() string {
	if id, ok := j["id"].(string); ok {
		return id
	}
	return ""
}

// String marshals into a json string
func (j JMap) String() string {
	buf, err := json.Marshal(&j)
	if err != nil {
		return ""
	}
	return string(buf)
}

// Print writes the result to w as a single json line or as a yaml document
func (j JMap) Print(w io.Writer, format string) error {
	switch format {
	case FormatJSON, "":
		_, err := fmt.Fprintln(w, j)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]interface{}(j)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// JMapSlice is an array of generic resources
type JMapSlice []JMap

// Len returns the length of the array
func (js JMapSlice) Len() int {
	return len(js)
}

// Less returns the comparsion of two elements
func (js JMapSlice) Less(i, j int) bool {
	return js[i].ID() < js[j].ID()
}

// Swap swaps two elements
func (js JMapSlice) Swap(i, j int) {
	js[j], js[i] = js[i], js[j]
}
