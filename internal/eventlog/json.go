package eventlog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scriptrec/internal/event"
)

const schemaURL = "https://scriptrec.local/schema/events.schema.json"

//go:embed schema/events.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func eventSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateJSON checks data against the event log schema.
func ValidateJSON(data []byte) error {
	schema, err := eventSchema()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func decodeJSON(data []byte) (*Log, error) {
	if err := ValidateJSON(data); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	log := &Log{}
	if len(raw) == 0 {
		return log, nil
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw[0]), []byte(`"`)) {
		for i, item := range raw {
			var line string
			if err := json.Unmarshal(item, &line); err != nil {
				return nil, &LineError{Line: i + 1, Text: string(item), Err: err}
			}
			if err := log.addLine(i+1, line); err != nil {
				return nil, err
			}
		}
		return log, nil
	}

	log.Events = make([]event.Event, 0, len(raw))
	for i, item := range raw {
		var ev event.Event
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, &LineError{Line: i + 1, Text: string(item), Err: err}
		}
		log.Events = append(log.Events, ev)
	}
	return log, nil
}
