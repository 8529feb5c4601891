package client

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pthm-cable/bgdynamics/components"
)

//go:embed emit.schema.json
var emitSchemaJSON string

var emitSchema = jsonschema.MustCompileString("emit.schema.json", emitSchemaJSON)

// emitJSON is the wire form of an emit event. Omitted fields take the
// defaults applied in ParseEmitJSON.
type emitJSON struct {
	Position [3]float32 `json:"position"`
	Velocity [3]float32 `json:"velocity"`
	Count    *int       `json:"count"`
	Scale    *float32   `json:"scale"`
	Spread   float32    `json:"spread"`
	Category string     `json:"category"`
	Kind     string     `json:"kind"`
	Tendril  string     `json:"tendril"`
}

// ParseEmitJSON validates data against the emit schema and converts it to an
// event. Defaults: count 1, scale 1, category rock, tendril smoke.
func ParseEmitJSON(data []byte) (components.EmitEvent, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return components.EmitEvent{}, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
	}
	if err := emitSchema.Validate(doc); err != nil {
		return components.EmitEvent{}, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
	}

	var raw emitJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return components.EmitEvent{}, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
	}
	ev := components.EmitEvent{
		Pos:    mgl32.Vec3(raw.Position),
		Vel:    mgl32.Vec3(raw.Velocity),
		Count:  1,
		Scale:  1,
		Spread: raw.Spread,
	}
	if raw.Count != nil {
		ev.Count = *raw.Count
	}
	if raw.Scale != nil {
		ev.Scale = *raw.Scale
	}

	var err error
	if ev.Kind, err = components.ParseEmitKind(raw.Kind); err != nil {
		return components.EmitEvent{}, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
	}
	if raw.Category != "" {
		if ev.Category, err = components.ParseChunkCategory(raw.Category); err != nil {
			return components.EmitEvent{}, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
		}
	}
	if raw.Tendril != "" {
		if ev.Tendril, err = components.ParseTendrilKind(raw.Tendril); err != nil {
			return components.EmitEvent{}, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
		}
	}
	return ev, nil
}

// Emit validates an event and posts it to the worker. Nothing is returned
// about what gets spawned; quality and population caps decide that later.
func (c *Client) Emit(ev components.EmitEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEmit, err)
	}
	return c.server.Emit(ev)
}

// EmitJSON parses and emits a JSON-encoded event.
func (c *Client) EmitJSON(data []byte) error {
	ev, err := ParseEmitJSON(data)
	if err != nil {
		return err
	}
	return c.Emit(ev)
}
