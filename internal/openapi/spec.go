// Package openapi embeds the gateway's OpenAPI document.
package openapi

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"
)

//go:embed spec.yaml
var specYAML []byte

var (
	jsonOnce sync.Once
	jsonDoc  []byte
	jsonErr  error
)

// JSON returns the OpenAPI document serialized as JSON. The conversion runs
// once per process.
func JSON() ([]byte, error) {
	jsonOnce.Do(func() {
		jsonDoc, jsonErr = yaml.YAMLToJSON(specYAML)
	})
	return jsonDoc, jsonErr
}

// YAML returns the raw OpenAPI YAML document.
func YAML() []byte {
	return specYAML
}

// Operations maps each documented path to its sorted, upper-case methods.
func Operations() (map[string][]string, error) {
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := yaml.Unmarshal(specYAML, &doc); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(doc.Paths))
	for path, item := range doc.Paths {
		methods := make([]string, 0, len(item))
		for m := range item {
			switch m {
			case "get", "post", "put", "patch", "delete", "options", "head":
				methods = append(methods, strings.ToUpper(m))
			}
		}
		sort.Strings(methods)
		out[path] = methods
	}
	return out, nil
}
