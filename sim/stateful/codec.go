package stateful

import (
	"encoding/json"
	"fmt"
	"io"
)

// Codec determines how states are encoded.
type Codec interface {
	Encode(w io.Writer, states map[string]State) error

	// Decode fills the given states in place. Every name in states must be
	// present in the input.
	Decode(r io.Reader, states map[string]State) error
}

// JSONCodec encodes states as one JSON object keyed by holder name.
type JSONCodec struct{}

// Encode writes the states as JSON to the provided writer.
func (c JSONCodec) Encode(w io.Writer, states map[string]State) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(states)
}

// Decode reads JSON data from the reader into the given states.
func (c JSONCodec) Decode(r io.Reader, states map[string]State) error {
	decoder := json.NewDecoder(r)

	var raw map[string]json.RawMessage

	err := decoder.Decode(&raw)
	if err != nil {
		return err
	}

	for name, state := range states {
		data, ok := raw[name]
		if !ok {
			return fmt.Errorf("no saved state for %s", name)
		}

		err = json.Unmarshal(data, state)
		if err != nil {
			return fmt.Errorf("decoding state of %s: %w", name, err)
		}
	}

	return nil
}
