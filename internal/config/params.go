package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/diewo77/go-honoraires/internal/pricing"
)

// LoadParameters reads an increase parameter file. Files ending in .json are
// decoded as JSON, anything else as YAML.
func LoadParameters(path string) (pricing.Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return pricing.Parameters{}, fmt.Errorf("open parameters: %w", err)
	}
	defer f.Close()
	return DecodeParameters(f, strings.EqualFold(filepath.Ext(path), ".json"))
}

// DecodeParameters decodes and validates parameters from r.
func DecodeParameters(r io.Reader, isJSON bool) (pricing.Parameters, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return pricing.Parameters{}, fmt.Errorf("read parameters: %w", err)
	}
	var pf pricing.ParametersFile
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&pf)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&pf)
		if err == io.EOF {
			err = nil
		}
	}
	if err != nil {
		return pricing.Parameters{}, fmt.Errorf("decode parameters: %w", err)
	}
	return pf.Parameters()
}
