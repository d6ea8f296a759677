package report

import (
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

func (rep Report) stringJSON() (string, error) {
	json := jsoniter.ConfigCompatibleWithStandardLibrary

	body, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}

	return string(body) + "\n", nil
}

// stringYAML goes through the json encoding so both formats share field names.
func (rep Report) stringYAML() (string, error) {
	json := jsoniter.ConfigCompatibleWithStandardLibrary

	body, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}

	var doc yaml.Node

	if err := yaml.Unmarshal(body, &doc); err != nil {
		return "", err
	}

	blockStyle(&doc)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", err
	}

	return "---\n" + string(out), nil
}

// blockStyle drops the flow and quoting styles inherited from the json input.
func blockStyle(node *yaml.Node) {
	node.Style = 0

	for _, child := range node.Content {
		blockStyle(child)
	}
}
